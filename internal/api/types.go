package api

// ServerTimeResponse from GET /v5/market/time
type ServerTimeResponse struct {
	TimeSecond string `json:"timeSecond"`
	TimeNano   string `json:"timeNano"`
}

// InstrumentsResponse from GET /v5/market/instruments-info
type InstrumentsResponse struct {
	Category       string          `json:"category"`
	List           []APIInstrument `json:"list"`
	NextPageCursor string          `json:"nextPageCursor"`
}

// APIInstrument is one instrument as returned by Bybit. Numeric fields are
// decimal strings.
type APIInstrument struct {
	Symbol       string `json:"symbol"`
	Status       string `json:"status"`
	BaseCoin     string `json:"baseCoin"`
	QuoteCoin    string `json:"quoteCoin"`
	SettleCoin   string `json:"settleCoin"`
	ContractType string `json:"contractType"`
	LaunchTime   string `json:"launchTime"`

	PriceFilter struct {
		TickSize string `json:"tickSize"`
		MinPrice string `json:"minPrice"`
		MaxPrice string `json:"maxPrice"`
	} `json:"priceFilter"`

	LotSizeFilter struct {
		BasePrecision string `json:"basePrecision"`
		QtyStep       string `json:"qtyStep"`
		MinOrderQty   string `json:"minOrderQty"`
		MaxOrderQty   string `json:"maxOrderQty"`
	} `json:"lotSizeFilter"`
}

// APIKeyInfo from GET /v5/user/query-api
type APIKeyInfo struct {
	ID          string              `json:"id"`
	APIKey      string              `json:"apiKey"`
	Note        string              `json:"note"`
	ReadOnly    int                 `json:"readOnly"`
	Permissions map[string][]string `json:"permissions"`
	ExpiredAt   string              `json:"expiredAt"`
	UID         int64               `json:"uid"`
}

// Instrument status values.
const (
	StatusTrading    = "Trading"
	StatusPreLaunch  = "PreLaunch"
	StatusDelivering = "Delivering"
	StatusClosed     = "Closed"
)

// GetInstrumentsOptions configures a GetInstrumentsPage request.
type GetInstrumentsOptions struct {
	Category string
	Symbol   string
	Status   string
	BaseCoin string
	Limit    int
	Cursor   string
}
