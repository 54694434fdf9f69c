// Package mockapi serves the product catalogue API from memory. The client
// package and the demo binary run against it.
package mockapi

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/krisalay/request-cache/model"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

var errNotFound = errors.New("not found")

// Server is an in-memory backend. The zero value is not usable; call New.
type Server struct {
	mu             sync.RWMutex
	products       []*model.Product
	scans          []*model.Scan
	certifications []*model.Certification

	prefix  string
	token   string
	latency time.Duration

	seq      atomic.Uint64
	requests atomic.Int64
}

type Option func(*Server)

// WithPrefix mounts every route below prefix, e.g. "/api".
func WithPrefix(prefix string) Option {
	return func(s *Server) { s.prefix = strings.TrimRight(prefix, "/") }
}

// WithToken rejects requests without "Authorization: Bearer <token>".
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithLatency delays every response by d.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

func New(opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Requests returns how many requests the server has handled.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

func (s *Server) nextID(prefix string) string {
	return fmt.Sprintf("%s_%06d", prefix, s.seq.Add(1))
}

// Handler routes a request to its endpoint.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	s.requests.Add(1)
	if s.latency > 0 {
		time.Sleep(s.latency)
	}

	if s.token != "" && string(ctx.Request.Header.Peek("Authorization")) != "Bearer "+s.token {
		writeError(ctx, fasthttp.StatusUnauthorized, "unauthorized")
		return
	}

	path := strings.TrimPrefix(string(ctx.Path()), s.prefix)
	method := string(ctx.Method())

	switch {
	case path == "/products" && method == fasthttp.MethodGet:
		s.listProducts(ctx)
	case path == "/products" && method == fasthttp.MethodPost:
		s.createProduct(ctx)
	case strings.HasPrefix(path, "/products/") && method == fasthttp.MethodGet:
		s.getProduct(ctx, strings.TrimPrefix(path, "/products/"))
	case path == "/scans" && method == fasthttp.MethodGet:
		s.listScans(ctx)
	case path == "/scans" && method == fasthttp.MethodPost:
		s.createScan(ctx)
	case path == "/certifications" && method == fasthttp.MethodGet:
		s.listCertifications(ctx)
	case path == "/certifications" && method == fasthttp.MethodPost:
		s.createCertification(ctx)
	case path == "/reports/generate" && method == fasthttp.MethodPost:
		s.generateReport(ctx)
	default:
		writeError(ctx, fasthttp.StatusNotFound, "route not found")
	}
}

// ===== Products =====

func (s *Server) listProducts(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	search := strings.ToLower(string(args.Peek("search")))
	category := string(args.Peek("category"))

	s.mu.RLock()
	products := make([]model.Product, 0, len(s.products))
	for _, p := range s.products {
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Category), search) {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		products = append(products, *p)
	}
	s.mu.RUnlock()

	writeData(ctx, fasthttp.StatusOK, model.ProductPage{
		Products: products,
		Total:    len(products),
		Page:     intArg(args, "page", 1),
		Limit:    intArg(args, "limit", 10),
	})
}

func (s *Server) getProduct(ctx *fasthttp.RequestCtx, id string) {
	s.mu.RLock()
	p, err := s.findProduct(id)
	var cp model.Product
	if err == nil {
		cp = *p
	}
	s.mu.RUnlock()

	if err != nil {
		writeError(ctx, fasthttp.StatusNotFound, "product "+id+" not found")
		return
	}
	writeData(ctx, fasthttp.StatusOK, map[string]any{"product": cp})
}

func (s *Server) createProduct(ctx *fasthttp.RequestCtx) {
	var in model.NewProduct
	if err := json.Unmarshal(ctx.PostBody(), &in); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid body")
		return
	}
	if in.Name == "" || in.Category == "" {
		writeError(ctx, fasthttp.StatusBadRequest, "name and category are required")
		return
	}

	p := &model.Product{
		ID:                  s.nextID("prod"),
		Name:                in.Name,
		Category:            in.Category,
		Description:         in.Description,
		SustainabilityScore: 60 + int(s.seq.Load()%30),
		CreatedAt:           time.Now().UTC(),
		Status:              "active",
	}

	s.mu.Lock()
	s.products = append(s.products, p)
	cp := *p
	s.mu.Unlock()

	writeData(ctx, fasthttp.StatusCreated, map[string]any{"product": cp})
}

// findProduct must be called with s.mu held.
func (s *Server) findProduct(id string) (*model.Product, error) {
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, errors.Wrapf(errNotFound, "product %s", id)
}

// ===== Scans =====

func (s *Server) listScans(ctx *fasthttp.RequestCtx) {
	productID := string(ctx.QueryArgs().Peek("product_id"))

	s.mu.RLock()
	scans := make([]model.Scan, 0, len(s.scans))
	for _, sc := range s.scans {
		if productID != "" && sc.Product.ID != productID {
			continue
		}
		scans = append(scans, *sc)
	}
	s.mu.RUnlock()

	writeData(ctx, fasthttp.StatusOK, model.ScanPage{Scans: scans, Total: len(scans)})
}

func (s *Server) createScan(ctx *fasthttp.RequestCtx) {
	var in model.NewScan
	if err := json.Unmarshal(ctx.PostBody(), &in); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid body")
		return
	}

	now := time.Now().UTC()
	n := s.seq.Add(1)

	s.mu.Lock()
	p, err := s.findProduct(in.ProductID)
	if err != nil {
		id := in.ProductID
		if id == "" {
			id = s.nextID("prod")
		}
		p = &model.Product{
			ID:                  id,
			Name:                "Scanned product",
			Category:            "General",
			SustainabilityScore: 75,
			CreatedAt:           now,
			Status:              "active",
		}
		s.products = append(s.products, p)
	}
	p.LastScan = &now

	scan := &model.Scan{
		ID:                  s.nextID("scan"),
		Product:             model.ProductRef{ID: p.ID, Name: p.Name, Category: p.Category},
		SustainabilityScore: 75,
		EnvironmentalImpact: model.Impact{
			CarbonFootprint:   fmt.Sprintf("%dg CO2e", 50+n%100),
			WaterUsage:        fmt.Sprintf("%dml", 100+n%200),
			EnergyConsumption: fmt.Sprintf("%.1fMJ", 0.5+float64(n%5)/10),
		},
		Recommendations: []model.Recommendation{
			{Category: "Materials", Suggestion: "Raise recycled content to 80%", Impact: "15% lower carbon footprint"},
			{Category: "Manufacturing", Suggestion: "Optimise the moulding process", Impact: "10% lower energy use"},
		},
		Comparison: model.Comparison{IndustryAverage: 62, BestInClass: 92},
		ScannedAt:  now,
	}
	s.scans = append(s.scans, scan)
	s.mu.Unlock()

	writeData(ctx, fasthttp.StatusCreated, scan)
}

// ===== Certifications =====

var requirementsByType = map[string][]string{
	model.EcoBasic:      {"Material analysis", "Process assessment", "Document review"},
	model.EcoPremium:    {"Material analysis", "Process assessment", "Document review", "Supplier audit"},
	model.CarbonNeutral: {"Material analysis", "Footprint calculation", "Offset plan"},
}

func requirementsFor(certType string) []model.Requirement {
	names := requirementsByType[certType]
	reqs := make([]model.Requirement, len(names))
	for i, name := range names {
		reqs[i] = model.Requirement{Name: name, Status: "pending"}
	}
	return reqs
}

func (s *Server) listCertifications(ctx *fasthttp.RequestCtx) {
	status := string(ctx.QueryArgs().Peek("status"))

	s.mu.RLock()
	certs := make([]model.Certification, 0, len(s.certifications))
	for _, c := range s.certifications {
		if status != "" && c.Status != status {
			continue
		}
		certs = append(certs, *c)
	}
	s.mu.RUnlock()

	writeData(ctx, fasthttp.StatusOK, model.CertificationPage{Certifications: certs, Total: len(certs)})
}

func (s *Server) createCertification(ctx *fasthttp.RequestCtx) {
	var in model.NewCertification
	if err := json.Unmarshal(ctx.PostBody(), &in); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	p, err := s.findProduct(in.ProductID)
	if err != nil {
		s.mu.Unlock()
		writeError(ctx, fasthttp.StatusNotFound, err.Error())
		return
	}
	cert := &model.Certification{
		ID:           s.nextID("cert"),
		Product:      model.ProductRef{ID: p.ID, Name: p.Name, Category: p.Category},
		Type:         in.Type,
		Status:       "pending",
		Score:        p.SustainabilityScore,
		Requirements: requirementsFor(in.Type),
		AppliedDate:  time.Now().UTC(),
	}
	s.certifications = append(s.certifications, cert)
	s.mu.Unlock()

	writeData(ctx, fasthttp.StatusCreated, cert)
}

// ===== Reports =====

func (s *Server) generateReport(ctx *fasthttp.RequestCtx) {
	var in model.ReportRequest
	if err := json.Unmarshal(ctx.PostBody(), &in); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, "invalid body")
		return
	}

	id := s.nextID("report")
	writeData(ctx, fasthttp.StatusOK, model.Report{
		ID:          id,
		Type:        in.Type,
		Format:      in.Format,
		Status:      "completed",
		DownloadURL: s.prefix + "/reports/" + id + "/download",
		GeneratedAt: time.Now().UTC(),
	})
}

// ===== Helpers =====

func intArg(args *fasthttp.Args, name string, def int) int {
	n, err := strconv.Atoi(string(args.Peek(name)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeData(ctx *fasthttp.RequestCtx, status int, data any) {
	write(ctx, status, envelope{Success: true, Data: data})
}

func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	write(ctx, status, envelope{Success: false, Message: message})
}

func write(ctx *fasthttp.RequestCtx, status int, body envelope) {
	b, err := json.Marshal(body)
	if err != nil {
		ctx.Error("encoding response", fasthttp.StatusInternalServerError)
		return
	}
	ctx.Response.Header.Set("Content-Type", "application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(b)
}
