package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/decayfit/internal/experiment"
	"github.com/san-kum/decayfit/internal/mcmc"
	"github.com/san-kum/decayfit/internal/model"
)

const (
	metadataFile = "metadata.json"
	dataFile     = "data.csv"
	chainFile    = "chain.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type FitSummary struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Nfev    int               `json:"nfev"`
	Chisqr  Number            `json:"chisqr"`
	Redchi  Number            `json:"redchi"`
	AIC     Number            `json:"aic"`
	BIC     Number            `json:"bic"`
	Values  map[string]Number `json:"values"`
}

type ParamSummary struct {
	Name        string   `json:"name"`
	Mean        Number   `json:"mean"`
	Median      Number   `json:"median"`
	Stderr      Number   `json:"stderr"`
	Spread2     Number   `json:"spread2"`
	Percentiles []Number `json:"percentiles"`
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Model     string             `json:"model"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      uint64             `json:"seed"`
	Points    int                `json:"points"`
	Noise     float64            `json:"noise"`
	Truth     map[string]float64 `json:"truth"`

	Walkers int `json:"walkers"`
	Steps   int `json:"steps"`
	Burn    int `json:"burn"`
	Thin    int `json:"thin"`

	Names      []string          `json:"names"`
	Fit        FitSummary        `json:"fit"`
	Posterior  []ParamSummary    `json:"posterior"`
	Correl     [][]Number        `json:"correl"`
	MaxProb    map[string]Number `json:"max_prob"`
	MaxLogProb Number            `json:"max_log_prob"`
	Acceptance []Number          `json:"acceptance"`
}

func newMetadata(id string, cfg experiment.Config, res *experiment.Result) RunMetadata {
	_, walkers, _ := res.Chain.Shape()
	meta := RunMetadata{
		ID:        id,
		Model:     cfg.Model,
		Timestamp: time.Now().UTC(),
		Seed:      res.Seed,
		Points:    res.Data.Len(),
		Noise:     cfg.Noise,
		Truth:     cfg.Truth,
		Walkers:   walkers,
		Steps:     res.Chain.Steps,
		Burn:      res.Chain.Burn,
		Thin:      res.Chain.Thin,
		Names:     res.Chain.Names,
		Fit: FitSummary{
			Success: res.Fit.Success,
			Message: res.Fit.Message,
			Nfev:    res.Fit.Nfev,
			Chisqr:  Number(res.Fit.Chisqr),
			Redchi:  Number(res.Fit.Redchi),
			AIC:     Number(res.Fit.AIC),
			BIC:     Number(res.Fit.BIC),
			Values:  make(map[string]Number),
		},
		MaxProb:    make(map[string]Number),
		MaxLogProb: Number(res.Summary.MaxLogProb),
		Acceptance: numbers(res.Chain.AcceptanceFraction()),
	}
	for name, v := range res.Fit.Params.ValueMap() {
		meta.Fit.Values[name] = Number(v)
	}
	for _, m := range res.Summary.Marginals {
		meta.Posterior = append(meta.Posterior, ParamSummary{
			Name:        m.Name,
			Mean:        Number(m.Mean),
			Median:      Number(m.Median),
			Stderr:      Number(m.Stderr),
			Spread2:     Number(m.Spread2),
			Percentiles: numbers(m.Percentiles),
		})
	}
	for i, name := range res.Summary.Names {
		meta.Correl = append(meta.Correl, numbers(res.Summary.Correl[i]))
		meta.MaxProb[name] = Number(res.Summary.MaxProb[i])
	}
	return meta
}

// Save writes a run directory holding metadata.json, data.csv and chain.csv
// and returns the run id.
func (s *Store) Save(cfg experiment.Config, res *experiment.Result) (string, error) {
	runID := fmt.Sprintf("%s_%s", cfg.Model, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), newMetadata(runID, cfg, res)); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, dataFile), func(w *csv.Writer) error {
		return writeData(w, res.Data)
	}); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, chainFile), func(w *csv.Writer) error {
		return writeChain(w, res.Chain)
	}); err != nil {
		return "", err
	}

	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSV(path string, fn func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := fn(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeData(w *csv.Writer, d model.Dataset) error {
	if err := w.Write([]string{"x", "y"}); err != nil {
		return err
	}
	for i := range d.X {
		if err := w.Write([]string{formatFloat(d.X[i]), formatFloat(d.Y[i])}); err != nil {
			return err
		}
	}
	return nil
}

// writeChain stores one row per retained (step, walker) sample.
func writeChain(w *csv.Writer, c *mcmc.Chain) error {
	header := append([]string{"step", "walker", "lnprob"}, c.Names...)
	if err := w.Write(header); err != nil {
		return err
	}
	for i, step := range c.Samples {
		for k, theta := range step {
			row := make([]string, 0, len(header))
			row = append(row, strconv.Itoa(i), strconv.Itoa(k), formatFloat(c.LogProb[i][k]))
			for _, v := range theta {
				row = append(row, formatFloat(v))
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// List returns the stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) readCSV(runID, name string) ([][]string, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func (s *Store) LoadData(runID string) (model.Dataset, error) {
	records, err := s.readCSV(runID, dataFile)
	if err != nil {
		return model.Dataset{}, err
	}

	var d model.Dataset
	for i := 1; i < len(records); i++ {
		if len(records[i]) < 2 {
			continue
		}
		x, err := strconv.ParseFloat(records[i][0], 64)
		if err != nil {
			return model.Dataset{}, fmt.Errorf("%s line %d: %w", dataFile, i+1, err)
		}
		y, err := strconv.ParseFloat(records[i][1], 64)
		if err != nil {
			return model.Dataset{}, fmt.Errorf("%s line %d: %w", dataFile, i+1, err)
		}
		d.X = append(d.X, x)
		d.Y = append(d.Y, y)
	}
	return d, nil
}

// LoadChain rebuilds the retained chain of a run.
func (s *Store) LoadChain(runID string) (*mcmc.Chain, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	records, err := s.readCSV(runID, chainFile)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header", chainFile)
	}

	dim := len(records[0]) - 3
	chain := &mcmc.Chain{
		Names: records[0][3:],
		Steps: meta.Steps,
		Burn:  meta.Burn,
		Thin:  meta.Thin,
	}
	for _, a := range meta.Acceptance {
		chain.Accepted = append(chain.Accepted, int(float64(a)*float64(meta.Steps)+0.5))
	}

	for i := 1; i < len(records); i++ {
		rec := records[i]
		if len(rec) != dim+3 {
			return nil, fmt.Errorf("%s line %d: expected %d fields, got %d", chainFile, i+1, dim+3, len(rec))
		}
		step, err1 := strconv.Atoi(rec[0])
		walker, err2 := strconv.Atoi(rec[1])
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", chainFile, i+1, err)
		}
		for len(chain.Samples) <= step {
			chain.Samples = append(chain.Samples, nil)
			chain.LogProb = append(chain.LogProb, nil)
		}
		if walker != len(chain.Samples[step]) {
			return nil, fmt.Errorf("%s line %d: walker %d out of order", chainFile, i+1, walker)
		}

		vals := make([]float64, dim+1)
		for j := range vals {
			v, err := strconv.ParseFloat(rec[j+2], 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", chainFile, i+1, err)
			}
			vals[j] = v
		}
		chain.LogProb[step] = append(chain.LogProb[step], vals[0])
		chain.Samples[step] = append(chain.Samples[step], vals[1:])
	}
	return chain, nil
}

// ExportJSON writes the metadata, data and flattened chain of a run to w.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	data, err := s.LoadData(runID)
	if err != nil {
		return err
	}
	chain, err := s.LoadChain(runID)
	if err != nil {
		return err
	}

	out := ExportData{
		RunMetadata: *meta,
		X:           data.X,
		Y:           data.Y,
		Chain:       make(map[string][]Number, len(chain.Names)),
		LogProb:     numbers(chain.FlatLogProb()),
	}
	for name, v := range chain.FlatByName() {
		out.Chain[name] = numbers(v)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type ExportData struct {
	RunMetadata
	X       []float64           `json:"x"`
	Y       []float64           `json:"y"`
	Chain   map[string][]Number `json:"chain"`
	LogProb []Number            `json:"lnprob"`
}

// ExportCSV copies the chain of a run to w.
func (s *Store) ExportCSV(w io.Writer, runID string) error {
	f, err := os.Open(filepath.Join(s.baseDir, runID, chainFile))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
