package model

// KRCompany is a listed Korean issuer from the OpenDART corporate code
// registry. CorpCode is the key every OpenDART endpoint takes.
type KRCompany struct {
	CorpCode   string `json:"corp_code"`
	StockCode  string `json:"stock_code"`
	Name       string `json:"name"`
	ModifyDate string `json:"modify_date,omitempty"`
}
