package domain

// CatalogEntry is one row of the canonical product table
type CatalogEntry struct {
	Row        int    `json:"row"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	Brand      string `json:"brand,omitempty"`
	Collection string `json:"collection,omitempty"`
	Category   string `json:"category,omitempty"`
	Unit       string `json:"unit,omitempty"`
	Volume     string `json:"volume,omitempty"`
	CostPrice  string `json:"costPrice,omitempty"`
	SalePrice  string `json:"salePrice,omitempty"`
}

// Catalog is the loaded reference table plus its typed entries.
// Entries[i].Row indexes into Table.Rows.
type Catalog struct {
	Table      *Table
	Entries    []CatalogEntry
	IDColumn   string
	NameColumn string
}

// NoisyRecord is a product name taken from an imperfect external source
type NoisyRecord struct {
	Name      string `json:"name"`
	PartialID string `json:"partialId,omitempty"`
	Source    string `json:"source,omitempty"`
	Page      string `json:"page,omitempty"`
	Quantity  string `json:"quantity,omitempty"`
	Value     string `json:"value,omitempty"`
}

// MatchResult is the outcome of scoring one noisy record against the catalog
type MatchResult struct {
	Record         NoisyRecord `json:"record"`
	Candidate      string      `json:"candidate"`
	CandidateIndex int         `json:"candidateIndex"`
	Score          int         `json:"score"`    // 0-100, rounded half to even
	RawScore       float64     `json:"rawScore"` // unrounded; decides Accepted
	Accepted       bool        `json:"accepted"`
	Identifier     string      `json:"identifier,omitempty"`
}

// RetailProduct is a product tile parsed from a retailer search page
type RetailProduct struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// RunSummary holds the counters recorded when a pipeline run finishes
type RunSummary struct {
	Output   string
	Records  int
	Accepted int
	Filled   int
	Status   string
}
