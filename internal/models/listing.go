package models

// ListingPreview is one retained entry from a search results page. Pointer
// fields are null when the page did not carry the element.
type ListingPreview struct {
	Index     int     `json:"index"`
	URL       string  `json:"url"`
	Title     *string `json:"title"`
	Price     *int    `json:"price"`
	Location  *string `json:"location"`
	Photo     *string `json:"photo"`
	Condition *string `json:"condition"`
}

// ProductDetail is a fully scraped product page. Records whose converted
// price falls below the caller's threshold are never materialized.
type ProductDetail struct {
	URL            string            `json:"url"`
	ID             string            `json:"id"`
	PriceOriginal  *int              `json:"price_original"`
	PriceConverted *int              `json:"price_converted"`
	Name           string            `json:"name"`
	SellerName     string            `json:"seller_name"`
	SellerURL      string            `json:"seller_url"`
	Photos         []string          `json:"photos"`
	DescriptionURL *string           `json:"description_url"`
	Description    *string           `json:"description"`
	Features       map[string]string `json:"features"`
	Variants       []VariantRecord   `json:"variants"`
}

// VariantRecord is one purchasable configuration of a product. Attributes
// maps dimension labels (e.g. "Color") to the selected value; the key set
// varies per product category.
type VariantRecord struct {
	ID                string            `json:"id"`
	Attributes        map[string]string `json:"attributes"`
	PriceOriginal     int               `json:"price_original"`
	CurrencyOriginal  string            `json:"price_original_currency"`
	PriceConverted    int               `json:"price_converted"`
	CurrencyConverted string            `json:"price_converted_currency"`
	OutOfStock        bool              `json:"out_of_stock"`
}
