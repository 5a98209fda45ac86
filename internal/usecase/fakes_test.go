package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cigarlens/backend/internal/domain"
)

// fakeCatalog is an in-memory domain.CatalogRepository
type fakeCatalog struct {
	mu       sync.Mutex
	entries  map[string]*domain.CatalogEntry
	nextID   int
	creates  int
	updates  int
	findErr  error
	createFn func(entry *domain.CatalogEntry) error
}

func newFakeCatalog(entries ...*domain.CatalogEntry) *fakeCatalog {
	f := &fakeCatalog{entries: make(map[string]*domain.CatalogEntry)}
	for _, e := range entries {
		f.put(e)
	}
	return f
}

func (f *fakeCatalog) put(e *domain.CatalogEntry) {
	if e.ID == "" {
		f.nextID++
		e.ID = fmt.Sprintf("entry-%03d", f.nextID)
	}
	if e.NormalizedBrand == "" {
		e.NormalizedBrand = domain.Normalize(e.Brand)
	}
	if e.NormalizedName == "" {
		e.NormalizedName = domain.Normalize(e.Name)
	}
	if len(e.SearchKeywords) == 0 {
		e.SearchKeywords = domain.SearchKeywords(e.Brand, e.Name)
	}
	f.entries[e.ID] = e
}

func (f *fakeCatalog) FindByNormalized(ctx context.Context, nb, nn string) (*domain.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, e := range f.entries {
		if e.NormalizedBrand == nb && e.NormalizedName == nn {
			return clone(e), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCatalog) FindByKeywords(ctx context.Context, keywords []string) ([]*domain.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	want := make(map[string]bool)
	for _, k := range keywords {
		want[k] = true
	}
	var out []*domain.CatalogEntry
	for _, e := range f.entries {
		for _, k := range e.SearchKeywords {
			if want[k] {
				out = append(out, clone(e))
				break
			}
		}
	}
	// Reverse id order so tie-breaking is exercised
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeCatalog) GetEntry(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(e), nil
}

func (f *fakeCatalog) CreateEntry(ctx context.Context, entry *domain.CatalogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createFn != nil {
		if err := f.createFn(entry); err != nil {
			return err
		}
	}
	f.creates++
	f.put(entry)
	f.entries[entry.ID] = clone(entry)
	return nil
}

func (f *fakeCatalog) UpdateEntry(ctx context.Context, entry *domain.CatalogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[entry.ID]; !ok {
		return domain.ErrNotFound
	}
	f.updates++
	f.entries[entry.ID] = clone(entry)
	return nil
}

func (f *fakeCatalog) get(id string) *domain.CatalogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clone(f.entries[id])
}

func (f *fakeCatalog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func clone(e *domain.CatalogEntry) *domain.CatalogEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.SearchKeywords = append([]string(nil), e.SearchKeywords...)
	c.FlavorProfile = append([]string(nil), e.FlavorProfile...)
	c.Images = append([]string(nil), e.Images...)
	c.TastingNotes = domain.TastingNotes{
		FirstThird:  append([]string(nil), e.TastingNotes.FirstThird...),
		SecondThird: append([]string(nil), e.TastingNotes.SecondThird...),
		FinalThird:  append([]string(nil), e.TastingNotes.FinalThird...),
	}
	if e.Rating != nil {
		r := *e.Rating
		c.Rating = &r
	}
	return &c
}

// fakeCache is a map-backed domain.ResultCache
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*domain.CatalogEntry
	sets    int
	clears  []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*domain.CatalogEntry)}
}

func (c *fakeCache) Get(ctx context.Context, brand, name string) (*domain.CatalogEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[domain.CacheKey(brand, name)]
	return e, ok
}

func (c *fakeCache) Set(ctx context.Context, brand, name string, entry *domain.CatalogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[domain.CacheKey(brand, name)] = entry
}

func (c *fakeCache) Clear(ctx context.Context, brand, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if brand == "" && name == "" {
		c.entries = make(map[string]*domain.CatalogEntry)
		return
	}
	key := domain.CacheKey(brand, name)
	c.clears = append(c.clears, key)
	delete(c.entries, key)
}

// fakeBrands is an in-memory domain.BrandRepository
type fakeBrands struct {
	mu      sync.Mutex
	brands  map[string]*domain.BrandEntry
	updates int
}

func newFakeBrands(brands ...*domain.BrandEntry) *fakeBrands {
	f := &fakeBrands{brands: make(map[string]*domain.BrandEntry)}
	for _, b := range brands {
		if b.NormalizedName == "" {
			b.NormalizedName = domain.Normalize(b.Name)
		}
		f.brands[b.NormalizedName] = b
	}
	return f
}

func (f *fakeBrands) FindBrand(ctx context.Context, normalizedName string) (*domain.BrandEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.brands[normalizedName]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (f *fakeBrands) CreateBrand(ctx context.Context, brand *domain.BrandEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if brand.NormalizedName == "" {
		brand.NormalizedName = domain.Normalize(brand.Name)
	}
	if _, ok := f.brands[brand.NormalizedName]; ok {
		return domain.ErrDuplicateEntry
	}
	if brand.ID == "" {
		brand.ID = "brand-" + brand.NormalizedName
	}
	c := *brand
	f.brands[brand.NormalizedName] = &c
	return nil
}

func (f *fakeBrands) UpdateBrand(ctx context.Context, brand *domain.BrandEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	c := *brand
	f.brands[brand.NormalizedName] = &c
	return nil
}

func (f *fakeBrands) get(normalizedName string) *domain.BrandEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.brands[normalizedName]
}

// fakeStats is an in-memory domain.StatsRepository
type fakeStats struct {
	mu        sync.Mutex
	stats     map[string]*domain.RecognitionStats
	updateErr error
	updates   int
}

func newFakeStats() *fakeStats {
	return &fakeStats{stats: make(map[string]*domain.RecognitionStats)}
}

func (f *fakeStats) GetStats(ctx context.Context, key string) (*domain.RecognitionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stats[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeStats) UpdateStats(ctx context.Context, key string, fn func(*domain.RecognitionStats)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return f.updateErr
	}
	s, ok := f.stats[key]
	if !ok {
		s = &domain.RecognitionStats{Key: key}
	}
	fn(s)
	f.stats[key] = s
	return nil
}

func (f *fakeStats) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

// scriptedTransport returns a fixed response or error per model
type scriptedTransport struct {
	mu        sync.Mutex
	name      string
	responses map[string]string
	errors    map[string]error
	calls     []string
	requests  []*domain.InferenceRequest
}

func newScriptedTransport(name string) *scriptedTransport {
	return &scriptedTransport{name: name, responses: map[string]string{}, errors: map[string]error{}}
}

func (t *scriptedTransport) Name() string { return t.name }

func (t *scriptedTransport) Generate(ctx context.Context, model string, req *domain.InferenceRequest) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, model)
	t.requests = append(t.requests, req)
	if err, ok := t.errors[model]; ok {
		return "", err
	}
	if resp, ok := t.responses[model]; ok {
		return resp, nil
	}
	return "", unavailable(model, t.name)
}

func (t *scriptedTransport) callLog() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

func unavailable(model, transport string) error {
	return &domain.BackendError{Kind: domain.ErrBackendUnavailable, Model: model, Transport: transport, StatusCode: 404}
}

func rejected(model, transport string) error {
	return &domain.BackendError{Kind: domain.ErrBackendRejected, Model: model, Transport: transport, StatusCode: 429, Message: "quota exceeded"}
}

// fakeLister returns a fixed model list
type fakeLister struct {
	mu     sync.Mutex
	models []string
	err    error
	calls  int
}

func (l *fakeLister) ListModels(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return append([]string(nil), l.models...), nil
}

// fakeSettings is a static domain.Settings
type fakeSettings struct {
	imageSearch bool
	persist     bool
	preferred   []string
}

func (s *fakeSettings) ImageSearchEnabled() bool  { return s.imageSearch }
func (s *fakeSettings) PersistResults() bool      { return s.persist }
func (s *fakeSettings) PreferredModels() []string { return s.preferred }

// fakeSearch returns fixed image search hits
type fakeSearch struct {
	items   []domain.ImageSearchItem
	err     error
	queries []string
}

func (s *fakeSearch) SearchImages(ctx context.Context, query string) ([]domain.ImageSearchItem, error) {
	s.queries = append(s.queries, query)
	return s.items, s.err
}

// fakeProber accepts only the listed URLs
type fakeProber struct {
	mu     sync.Mutex
	ok     map[string]bool
	probed []string
}

func newFakeProber(reachable ...string) *fakeProber {
	p := &fakeProber{ok: make(map[string]bool)}
	for _, u := range reachable {
		p.ok[u] = true
	}
	return p
}

func (p *fakeProber) Probe(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, url)
	if p.ok[url] {
		return nil
	}
	return fmt.Errorf("unreachable: %s", url)
}

// fakePages maps page URLs to lead images
type fakePages struct {
	images map[string]string
	read   []string
}

func (p *fakePages) LeadImage(ctx context.Context, pageURL string) (string, error) {
	p.read = append(p.read, pageURL)
	img, ok := p.images[pageURL]
	if !ok {
		return "", fmt.Errorf("no page %s", pageURL)
	}
	return img, nil
}

// fixedClock returns a controllable time source
func fixedClock(t time.Time) domain.Clock {
	return func() time.Time { return t }
}

// staticCandidates is a fixed CandidateProvider
type staticCandidates []string

func (s staticCandidates) Candidates(ctx context.Context) []domain.ModelCandidate {
	out := make([]domain.ModelCandidate, len(s))
	for i, id := range s {
		out[i] = domain.ModelCandidate{ID: id, Source: domain.SourceDefault}
	}
	return out
}

// recordingMetrics captures pipeline events
type recordingMetrics struct {
	mu              sync.Mutex
	attempts        []string
	recognitions    []string
	images          []string
	reconciliations []string
}

func (m *recordingMetrics) BackendAttempt(model, transport, outcome string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, model+"/"+transport+":"+outcome)
}

func (m *recordingMetrics) Recognition(mode, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recognitions = append(m.recognitions, mode+":"+outcome)
}

func (m *recordingMetrics) ImageResolution(strategy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images = append(m.images, strategy)
}

func (m *recordingMetrics) Reconciliation(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconciliations = append(m.reconciliations, outcome)
}
