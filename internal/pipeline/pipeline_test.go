package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/spigell/jobmatch/internal/catalog"
	"github.com/spigell/jobmatch/internal/config"
	"github.com/spigell/jobmatch/internal/embedding"
	"github.com/spigell/jobmatch/internal/index"
	"github.com/spigell/jobmatch/internal/ranking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const dataset = `id,title,company,location,type,skills,description
1,ML Intern,Acme,Remote,Internship,python;ml;sql,Train models
2,Backend Intern,Gopher Co,Berlin,Internship,go;sql;docker,Build services
3,Data Analyst,Numbers Ltd,Remote,Full-time,sql;excel;tableau,Dashboards
4,Frontend Intern,Pixel,Paris,Internship,javascript;react;css,Build UIs
`

type stubGenerator struct {
	output string
	calls  int
}

func (s *stubGenerator) GenerateContent(context.Context, string, string) (string, error) {
	s.calls++
	return s.output, nil
}

func (s *stubGenerator) Provider() string { return "stub" }

func (s *stubGenerator) Model() string { return "stub-1" }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.csv")
	require.NoError(t, os.WriteFile(path, []byte(dataset), 0o644))

	cfg := config.Defaults()
	cfg.Dataset = path
	cfg.Index.Path = filepath.Join(dir, "store", "vector_store")
	return cfg
}

func newApp(cfg *config.Config, gen *stubGenerator, log *zap.Logger) *App {
	idx := index.New(embedding.NewHashing(64), &index.FlatSearcher{}, index.NewStore(cfg.Index.Path), log)
	var engine *ranking.Engine
	if gen != nil {
		engine = ranking.New(gen, log, ranking.Options{})
	} else {
		engine = ranking.New(nil, log, ranking.Options{})
	}
	return New(cfg, idx, engine, log)
}

func TestRecommendRejectsEmptyProfileBeforeRetrieval(t *testing.T) {
	cfg := testConfig(t)
	app := newApp(cfg, nil, zap.NewNop())

	_, err := app.Recommend(context.Background(), Request{Skills: []string{" ", ""}, Location: "Remote"})
	require.ErrorIs(t, err, ErrEmptyProfile)

	assert.False(t, app.IndexStats().Ready)
	assert.NoFileExists(t, cfg.Index.Path+"_jobs.json")
}

func TestRecommendHeuristic(t *testing.T) {
	cfg := testConfig(t)
	app := newApp(cfg, nil, zap.NewNop())

	resp, err := app.Recommend(context.Background(), Request{
		Skills:   []string{"Python", "ML"},
		Location: "Remote",
		TopN:     2,
	})
	require.NoError(t, err)

	_, err = uuid.Parse(resp.RequestID)
	assert.NoError(t, err)
	assert.Equal(t, ranking.PathHeuristic, resp.Path)
	assert.Equal(t, 4, resp.Candidates)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "1", resp.Results[0].ID)
	assert.Equal(t, []string{"python", "ml"}, resp.Profile.Skills)
	assert.FileExists(t, cfg.Index.Path+"_jobs.json")
}

func TestRecommendUsesResumeSkills(t *testing.T) {
	app := newApp(testConfig(t), nil, zap.NewNop())

	resp, err := app.Recommend(context.Background(), Request{ResumeText: "Built Go services with Docker.", Skills: []string{"sql"}})
	require.NoError(t, err)

	assert.Contains(t, resp.Profile.Skills, "go")
	assert.Contains(t, resp.Profile.Skills, "docker")
	assert.Equal(t, "sql", resp.Profile.Skills[len(resp.Profile.Skills)-1])
	assert.Equal(t, "2", resp.Results[0].ID)
}

func TestRecommendWithModel(t *testing.T) {
	gen := &stubGenerator{output: `[{"job_id":"4","score":0.9,"reason":"Frontend fit"},{"job_id":"1","score":0.2,"reason":"Some overlap"}]`}
	app := newApp(testConfig(t), gen, zap.NewNop())

	resp, err := app.Recommend(context.Background(), Request{Skills: []string{"react", "css"}})
	require.NoError(t, err)

	assert.Equal(t, ranking.PathModel, resp.Path)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "4", resp.Results[0].ID)
	assert.Equal(t, "Pixel", resp.Results[0].Company)
	assert.Equal(t, 1, gen.calls)
}

func TestRecommendRejectsInvalidRequest(t *testing.T) {
	app := newApp(testConfig(t), nil, zap.NewNop())

	_, err := app.Recommend(context.Background(), Request{Skills: []string{"go"}, TopK: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid request")
}

func TestInitSurfacesLoadErrorsAndRetries(t *testing.T) {
	cfg := testConfig(t)
	missing := filepath.Join(t.TempDir(), "later.csv")
	cfg.Dataset = missing
	app := newApp(cfg, nil, zap.NewNop())

	_, err := app.Recommend(context.Background(), Request{Skills: []string{"go"}})
	require.ErrorIs(t, err, catalog.ErrDatasetNotFound)
	assert.NotErrorIs(t, err, ErrNoResults)

	require.NoError(t, os.WriteFile(missing, []byte(dataset), 0o644))
	require.NoError(t, app.Init(context.Background()))
	assert.Len(t, app.Records(), 4)
}

func TestInitConcurrentCallersShareInitialization(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	app := newApp(testConfig(t), nil, zap.New(core))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := app.Recommend(context.Background(), Request{Skills: []string{"sql"}}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}

	assert.Equal(t, 1, observed.FilterMessage("loaded job records").Len())
	assert.Equal(t, 1, observed.FilterMessage("built index").Len())
	assert.Equal(t, 16, observed.FilterMessage("recommendation ready").Len())
}

func TestRebuild(t *testing.T) {
	cfg := testConfig(t)
	app := newApp(cfg, nil, zap.NewNop())
	require.NoError(t, app.Init(context.Background()))

	updated := strings.Replace(dataset, "Dashboards", "Dashboards and reports", 1)
	require.NoError(t, os.WriteFile(cfg.Dataset, []byte(updated), 0o644))

	require.NoError(t, app.Rebuild(context.Background()))
	assert.Equal(t, catalog.Fingerprint(app.Records()), app.IndexStats().Fingerprint)
	assert.Equal(t, "Dashboards and reports", app.Records()[2].Description)
}

func TestBootstrapWithoutAPIKeyIsHeuristicOnly(t *testing.T) {
	cfg := testConfig(t)
	core, observed := observer.New(zapcore.InfoLevel)

	app, err := Bootstrap(context.Background(), cfg, zap.New(core))
	require.NoError(t, err)

	assert.False(t, app.ModelEnabled())
	assert.Equal(t, 1, observed.FilterMessageSnippet("heuristic ranking").Len())
	assert.Equal(t, "hash", app.IndexStats().Embedder)
	assert.Equal(t, config.SearcherFlat, app.IndexStats().Searcher)
}

func TestBootstrapParallelSearcher(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Searcher = config.SearcherParallel
	cfg.Index.Workers = 3

	app, err := Bootstrap(context.Background(), cfg, nil)
	require.NoError(t, err)

	resp, err := app.Recommend(context.Background(), Request{Skills: []string{"go", "docker"}})
	require.NoError(t, err)
	assert.Equal(t, "2", resp.Results[0].ID)
}
