package model

// Address holds the structured place attributes of a reverse-geocoded
// coordinate. Empty strings mean the attribute is unknown.
type Address struct {
	Street      string `json:"street,omitempty"`
	District    string `json:"district,omitempty"`
	City        string `json:"city,omitempty"`
	Region      string `json:"region,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

// Empty reports whether no attribute of the address is known.
func (a Address) Empty() bool {
	return a == Address{}
}
