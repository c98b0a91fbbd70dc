// Package model defines the data types shared across the intelligence pipeline.
package model

// IntelRequest is the input to a company intelligence run.
type IntelRequest struct {
	Website             string       `json:"website"`
	CompanyName         string       `json:"companyName,omitempty"`
	CompanyAddress      string       `json:"companyAddress,omitempty"`
	CompanyPrefecture   string       `json:"companyPrefecture,omitempty"`
	CompanyCity         string       `json:"companyCity,omitempty"`
	ForceExternalSearch bool         `json:"forceExternalSearch,omitempty"`
	Options             IntelOptions `json:"options"`
}

// IntelOptions carries the caller's dropdown candidate lists. The pipeline
// only ever returns exact members of these lists for the three form fields.
type IntelOptions struct {
	Industries     []string `json:"industries"`
	EmployeeRanges []string `json:"employeeRanges"`
	RevenueRanges  []string `json:"revenueRanges"`
}

// CompanyIntel is the structured result assembled from LLM output and
// heuristic overrides.
type CompanyIntel struct {
	Industry            *string  `json:"industry"`
	EmployeeCount       *string  `json:"employeeCount"`
	AnnualRevenue       *string  `json:"annualRevenue"`
	CompanyNameKana     *string  `json:"companyNameKana,omitempty"`
	EstablishedDate     *string  `json:"establishedDate,omitempty"`
	RepresentativeName  *string  `json:"representativeName,omitempty"`
	Phone               *string  `json:"phone,omitempty"`
	Fax                 *string  `json:"fax,omitempty"`
	BusinessDescription *string  `json:"businessDescription,omitempty"`
	Capital             *string  `json:"capital,omitempty"`
	FiscalYearEnd       *string  `json:"fiscalYearEnd,omitempty"`
	Products            []string `json:"products"`
	Services            []string `json:"services"`
	Branches            []string `json:"branches"`
	Offices             []string `json:"offices"`
	Factories           []string `json:"factories"`
	OtherLocations      []string `json:"otherLocations"`
	Summary             *string  `json:"summary"`
	RawNotes            *string  `json:"rawNotes"`

	// ExtraBullets carries short one-line findings beyond the form fields,
	// at most 12, warnings first.
	ExtraBullets []string `json:"extraBullets"`

	// Latest figures as written in the source document (e.g. "46,984百万円").
	LatestRevenueText   *string `json:"latestRevenueText,omitempty"`
	LatestEmployeesText *string `json:"latestEmployeesText,omitempty"`
	LatestFactsSource   *string `json:"latestFactsSource,omitempty"`
}

// FinancialFacts holds figures read from a disclosure document, kept verbatim
// so the reconciliation step can parse and bucket them itself.
type FinancialFacts struct {
	RevenueText   *string  `json:"revenueText"`
	EmployeesText *string  `json:"employeesText"`
	EvidenceLines []string `json:"evidenceLines"`
}

// Empty reports whether the facts carry neither a revenue nor an employee figure.
func (f *FinancialFacts) Empty() bool {
	return f == nil || (f.RevenueText == nil && f.EmployeesText == nil)
}

// IntelMeta is diagnostic metadata returned alongside the result.
type IntelMeta struct {
	Source             string         `json:"source"`
	Method             string         `json:"method"`
	DirectStatus       int            `json:"directStatus,omitempty"`
	DirectContentType  string         `json:"directContentType,omitempty"`
	ScrapedCharacters  int            `json:"scrapedCharacters,omitempty"`
	InternalPages      []string       `json:"internalPages,omitempty"`
	ExternalPages      []string       `json:"externalPages,omitempty"`
	DiscardedPages     []string       `json:"discardedPages,omitempty"`
	Queries            []string       `json:"queries,omitempty"`
	CompanyNameGuess   string         `json:"companyNameGuess,omitempty"`
	StockCode          string         `json:"stockCode,omitempty"`
	DiscoveredPDFLinks []string       `json:"discoveredPdfLinks,omitempty"`
	FinancialPDF       string         `json:"financialPdf,omitempty"`
	RevenueOku         *float64       `json:"revenueOku,omitempty"`
	EmployeesN         *int           `json:"employeesN,omitempty"`
	NeedsEmployee      bool           `json:"needsEmployee"`
	NeedsRevenue       bool           `json:"needsRevenue"`
	NeedsLocations     bool           `json:"needsLocations"`
	Listed             *ListedSummary `json:"listed,omitempty"`
}

// ListedSummary is the listed-company verdict included in meta.
type ListedSummary struct {
	IsListed   bool     `json:"isListed"`
	StockCode  string   `json:"stockCode,omitempty"`
	Confidence string   `json:"confidence"`
	Score      int      `json:"score"`
	Reasons    []string `json:"reasons,omitempty"`
}
