// Package model holds the JSON resources exchanged with the catalogue API.
package model

import "time"

type ProductRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type Product struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Category            string     `json:"category"`
	Description         string     `json:"description,omitempty"`
	SustainabilityScore int        `json:"sustainability_score"`
	CreatedAt           time.Time  `json:"created_at"`
	LastScan            *time.Time `json:"last_scan"`
	Status              string     `json:"status"`
}

type ProductPage struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

type NewProduct struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

type Impact struct {
	CarbonFootprint   string `json:"carbon_footprint"`
	WaterUsage        string `json:"water_usage"`
	EnergyConsumption string `json:"energy_consumption"`
}

type Recommendation struct {
	Category   string `json:"category"`
	Suggestion string `json:"suggestion"`
	Impact     string `json:"impact"`
}

type Comparison struct {
	IndustryAverage int `json:"industry_average"`
	BestInClass     int `json:"best_in_class"`
}

type Scan struct {
	ID                  string           `json:"id"`
	Product             ProductRef       `json:"product"`
	SustainabilityScore int              `json:"sustainability_score"`
	EnvironmentalImpact Impact           `json:"environmental_impact"`
	Recommendations     []Recommendation `json:"improvement_recommendations"`
	Comparison          Comparison       `json:"comparison"`
	ScannedAt           time.Time        `json:"scanned_at"`
}

type ScanPage struct {
	Scans []Scan `json:"scans"`
	Total int    `json:"total"`
}

// NewScan records a scan of ProductID. An unknown product is created.
type NewScan struct {
	ProductID string `json:"product_id"`
}

type Requirement struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type Certification struct {
	ID              string        `json:"id"`
	Product         ProductRef    `json:"product"`
	Type            string        `json:"type"`
	Status          string        `json:"status"`
	Score           int           `json:"score"`
	Requirements    []Requirement `json:"requirements"`
	AppliedDate     time.Time     `json:"appliedDate"`
	IssueDate       *time.Time    `json:"issueDate"`
	ExpiryDate      *time.Time    `json:"expiryDate"`
	CertificateID   *string       `json:"certificateId"`
	RejectionReason *string       `json:"rejectionReason"`
}

type CertificationPage struct {
	Certifications []Certification `json:"certifications"`
	Total          int             `json:"total"`
}

// Certification types accepted by the API.
const (
	EcoBasic      = "eco-basic"
	EcoPremium    = "eco-premium"
	CarbonNeutral = "carbon-neutral"
)

type NewCertification struct {
	ProductID string `json:"product_id"`
	Type      string `json:"type"`
}

type Report struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Format      string    `json:"format"`
	Status      string    `json:"status"`
	DownloadURL string    `json:"downloadUrl"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type ReportRequest struct {
	Type   string `json:"type"`
	Format string `json:"format"`
}
