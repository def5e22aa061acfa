package domain

const (
	EventNameProductCreated    = "product.created"
	EventNameSaleRecorded      = "sale.recorded"
	EventNameStockLow          = "stock.low"
	EventNameTopSellersUpdated = "ranking.updated"
	EventNameQuizSubmitted     = "quiz.submitted"
)

type EventProductCreated struct {
	Product Product
}

func (EventProductCreated) Name() string { return EventNameProductCreated }

type EventSaleRecorded struct {
	Sale    Sale
	Barcode string
}

func (EventSaleRecorded) Name() string { return EventNameSaleRecorded }

type EventStockLow struct {
	Product Product
}

func (EventStockLow) Name() string { return EventNameStockLow }

type EventTopSellersUpdated struct {
	TopSellers TopSellers
}

func (EventTopSellersUpdated) Name() string { return EventNameTopSellersUpdated }

const (
	SubmitReasonManual  = "manual"
	SubmitReasonExpired = "expired"
)

type EventQuizSubmitted struct {
	SessionID string
	Reason    string
	Result    Result
}

func (EventQuizSubmitted) Name() string { return EventNameQuizSubmitted }
