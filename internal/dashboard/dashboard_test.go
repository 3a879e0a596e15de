package dashboard

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/dashloom/internal/pipeline"
	"github.com/KaramelBytes/dashloom/internal/table"
)

const odiCSV = `season,team1,team2,toss_winner,toss_decision,winner,venue,win_by_runs,win_by_wickets,player_of_match
2008,India,Pakistan,India,bat,India,Karachi,25,0,Virat Kohli
2008,England,Australia,Australia,field,Australia,Lords,0,5,Ricky Ponting
2009,India,Sri Lanka,Sri Lanka,bat,India,Colombo,0,3,Virat Kohli
2009,Kenya,Canada,Kenya,field,,Nairobi,0,0,
`

const playStoreCSV = `App,Category,Rating,Reviews,Installs
Alpha,GAME,4.5,100,"1,000+"
Beta,TOOLS,3.9,50,10K
Gamma,GAME,NaN,0,500+
Delta,,4.0,10,100
Eps,GAME,4.1,abc,2.5M
`

const titanicCSV = `Name,Survived
"Braund, Mr. Owen Harris",0
"Cumings, Mrs. John Bradley",1
"Heikkinen, Miss. Laina",1
"Allen, Mr. William Henry",0
Nobody,1
`

type recorded struct {
	dataset, outcome string
	rows             int
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recorded
}

func (f *fakeRecorder) ObserveRefresh(dataset, outcome string, rows int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recorded{dataset, outcome, rows})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func open(t *testing.T, name, content string, opts Options) *Dataset {
	t.Helper()
	def, err := Lookup(name)
	require.NoError(t, err)
	path := ""
	if content != "" {
		path = writeFile(t, t.TempDir(), def.Source, content)
	}
	ds, err := Open(def, path, opts)
	require.NoError(t, err)
	return ds
}

func seriesLabels(p Panel) []string {
	out := make([]string, len(p.Series))
	for i, pt := range p.Series {
		out[i] = pt.Label
	}
	return out
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"odi", "playstore", "scores", "titanic"}, Names())

	def, err := Lookup(" ODI ")
	require.NoError(t, err)
	assert.Equal(t, "odi", def.Name)

	_, err = Lookup("iris")
	assert.ErrorIs(t, err, ErrUnknownDataset)
	assert.Contains(t, err.Error(), "playstore")

	assert.Panics(t, func() { Register(&Definition{Name: "odi"}) })
}

func TestOpenWithoutSourceFails(t *testing.T) {
	def, err := Lookup("odi")
	require.NoError(t, err)
	_, err = Open(def, "", DefaultOptions())
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestOpenChecksRequiredColumns(t *testing.T) {
	def, err := Lookup("odi")
	require.NoError(t, err)
	p := writeFile(t, t.TempDir(), "odi.csv", "season,team1\n2008,India\n")
	_, err = Open(def, p, DefaultOptions())
	require.ErrorIs(t, err, table.ErrMissingColumns)
	assert.Contains(t, err.Error(), "player_of_match")
}

func TestScoresSample(t *testing.T) {
	ds := open(t, "scores", "", DefaultOptions())
	rep, err := ds.Refresh(context.Background(), pipeline.NewSelection(nil))
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Rows)
	avg, ok := rep.Metric("Average Score")
	require.True(t, ok)
	assert.InDelta(t, 87.6, avg.FloatVal(), 1e-9)
	assert.Equal(t, map[string]string{"min_score": pipeline.All}, rep.Selection)

	rep, err = ds.Refresh(context.Background(), pipeline.NewSelection(map[string]string{"min_score": "90"}))
	require.NoError(t, err)
	bar, ok := rep.Panel("Student Scores")
	require.True(t, ok)
	assert.Equal(t, []Point{{"Sara", 92}, {"Usman", 95}}, bar.Series)
}

func TestODIRefresh(t *testing.T) {
	assetsDir := t.TempDir()
	writeFile(t, assetsDir, "stadium.jpeg", "jpeg-bytes")
	rec := &fakeRecorder{}
	opts := DefaultOptions()
	opts.AssetsDir = assetsDir
	opts.Recorder = rec
	ds := open(t, "odi", odiCSV, opts)

	all, err := ds.Refresh(context.Background(), pipeline.NewSelection(nil))
	require.NoError(t, err)
	for label, want := range map[string]int64{"Total Matches": 4, "Unique Teams": 3, "Unique Venues": 4, "Seasons": 2} {
		v, ok := all.Metric(label)
		require.True(t, ok, label)
		assert.Equal(t, want, v.IntVal(), label)
	}
	wins, ok := all.Panel("Win Types Distribution")
	require.True(t, ok)
	assert.Equal(t, []string{pipeline.WinByWickets, pipeline.WinByRuns, pipeline.WinTieOther}, seriesLabels(wins))

	india, err := ds.Refresh(context.Background(), pipeline.NewSelection(map[string]string{"team": "India"}))
	require.NoError(t, err)
	assert.Equal(t, 2, india.Rows)
	assert.Equal(t, 4, india.Total)
	toss, _ := india.Panel("Tosses Won per Team")
	assert.Equal(t, []string{"India", "Sri Lanka"}, seriesLabels(toss))
	best, _ := india.Metric("Best Performer")
	assert.Equal(t, "Virat Kohli", best.Text())

	// stadium found, player image absent
	require.Len(t, india.Images, 1)
	assert.Equal(t, "stadium.jpeg", india.Images[0].Name)
	assert.True(t, strings.HasPrefix(india.Images[0].DataURI, "data:image/jpeg;base64,"))
	require.Len(t, india.Notices, 1)
	assert.Equal(t, Warning, india.Notices[0].Level)
	assert.Equal(t, "No image found for Virat Kohli", india.Notices[0].Message)

	// the full table is shared, never narrowed by a refresh
	assert.Equal(t, 4, ds.Table().Len())
	assert.NotEqual(t, all.ID, india.ID)
	assert.Len(t, rec.seen, 2)
	assert.Equal(t, recorded{"odi", OutcomeOK, 2}, rec.seen[1])
}

func TestODIEmptyView(t *testing.T) {
	ds := open(t, "odi", odiCSV, DefaultOptions())
	rep, err := ds.Refresh(context.Background(), pipeline.NewSelection(map[string]string{"season": "2008", "team": "Kenya"}))
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Rows)
	for _, p := range rep.Panels {
		assert.True(t, p.Empty(), p.Title)
	}
	_, ok := rep.Metric("Best Performer")
	assert.False(t, ok)
	assert.Contains(t, rep.Markdown(0), "(no data)")
}

func TestPlayStoreRefresh(t *testing.T) {
	rec := &fakeRecorder{}
	opts := DefaultOptions()
	opts.Recorder = rec
	ds := open(t, "playstore", playStoreCSV, opts)
	require.Equal(t, 4, ds.Table().Len(), "row without category is dropped")

	rep, err := ds.Refresh(context.Background(), pipeline.NewSelection(map[string]string{"category": "GAME"}))
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Rows)
	avg, ok := rep.Metric("Average Rating in GAME")
	require.True(t, ok)
	assert.InDelta(t, 4.3, avg.FloatVal(), 1e-9)
	_, ok = rep.Panel("Ratings Distribution in GAME")
	assert.True(t, ok)

	top, ok := rep.Panel("Top 10 Apps by Installs")
	require.True(t, ok)
	require.Len(t, top.Rows, 3)
	assert.Equal(t, "Eps", top.Rows[0][0].Text())
	assert.Equal(t, int64(2500000), top.Rows[0][2].IntVal())
	assert.Equal(t, pipeline.StoreLinkBase+"4", top.Rows[0][5].Text())

	cats, _ := rep.Panel("Top 10 Categories by Number of Apps")
	assert.Equal(t, []Point{{"GAME", 3}, {"TOOLS", 1}}, cats.Series, "category rankings use the full table")

	sc, ok := rep.Panel("Reviews vs Rating")
	require.True(t, ok)
	assert.Len(t, sc.Rows, 1)

	// no category selected: no average or histogram
	rep, err = ds.Refresh(context.Background(), pipeline.NewSelection(map[string]string{"min_installs": "5000"}))
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Rows)
	_, ok = rep.Metric("Average Rating in All")
	assert.False(t, ok)

	_, err = ds.Refresh(context.Background(), pipeline.NewSelection(map[string]string{"min_rating": "high"}))
	assert.ErrorIs(t, err, pipeline.ErrInvalidSelection)
	require.Len(t, rec.seen, 3)
	assert.Equal(t, OutcomeRejected, rec.seen[2].outcome)
}

func TestTitanicViolationsAreSurfaced(t *testing.T) {
	ds := open(t, "titanic", titanicCSV, DefaultOptions())
	require.Equal(t, 5, ds.Table().Len())
	require.Len(t, ds.Violations(), 1)
	assert.ErrorIs(t, ds.Violations()[0], pipeline.ErrNoTitle)
	assert.Equal(t, 4, ds.Violations()[0].Row)

	rep, err := ds.Refresh(context.Background(), pipeline.NewSelection(nil))
	require.NoError(t, err)
	rate, _ := rep.Metric("Survival Rate %")
	assert.InDelta(t, 60.0, rate.FloatVal(), 1e-9)
	titles, _ := rep.Panel("Title Counts")
	assert.Equal(t, []Point{{"Mr", 2}, {"Mrs", 1}, {"Miss", 1}}, titles.Series)
	ct, _ := rep.Panel("Survival by Title")
	require.NotNil(t, ct.Matrix)
	assert.Equal(t, []string{"Miss", "Mr", "Mrs"}, ct.Matrix.Rows)
	assert.Equal(t, []string{"Died", "Survived"}, ct.Matrix.Cols)
	assert.Equal(t, [][]int{{0, 1}, {2, 0}, {0, 1}}, ct.Matrix.Counts)
	require.NotEmpty(t, rep.Notices)
	assert.Contains(t, rep.Notices[0].Message, "1 record(s) could not be enriched")

	survivors, err := ds.Refresh(context.Background(), pipeline.NewSelection(map[string]string{"survived": "1"}))
	require.NoError(t, err)
	assert.Equal(t, 3, survivors.Rows)
}

func TestOptions(t *testing.T) {
	ds := open(t, "odi", odiCSV, DefaultOptions())
	opts, err := ds.Options()
	require.NoError(t, err)
	require.Len(t, opts, 2)
	assert.Equal(t, []string{pipeline.All, "2008", "2009"}, opts[0].Choices)
	assert.Equal(t, []string{pipeline.All, "Australia", "Canada", "England", "India", "Kenya", "Pakistan", "Sri Lanka"}, opts[1].Choices)

	ps := open(t, "playstore", playStoreCSV, DefaultOptions())
	popts, err := ps.Options()
	require.NoError(t, err)
	require.Len(t, popts, 3)
	require.NotNil(t, popts[1].Min)
	assert.Equal(t, 0.0, *popts[1].Min)
	assert.Equal(t, 4.5, *popts[1].Max)

	b, err := json.Marshal(popts[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"min_rating","label":"Minimum Rating","kind":"at_least","columns":["Rating"],"min":0,"max":4.5}`, string(b))
}

func TestReportEncodings(t *testing.T) {
	ds := open(t, "scores", "", DefaultOptions())
	rep, err := ds.Refresh(context.Background(), pipeline.NewSelection(nil))
	require.NoError(t, err)

	b, err := json.Marshal(rep)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "scores", decoded["dataset"])
	assert.EqualValues(t, 5, decoded["rows"])

	y, err := yaml.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(y), "title: Student Scores")

	md := rep.Markdown(2)
	assert.Contains(t, md, "# Student Scores")
	assert.Contains(t, md, "Filters: min_score=All")
	assert.Contains(t, md, "- Average Score: 87.60")
	assert.Contains(t, md, "… 3 more rows")
}

func TestConcurrentRefreshesAgree(t *testing.T) {
	ds := open(t, "odi", odiCSV, DefaultOptions())
	sels := []pipeline.Selection{
		pipeline.NewSelection(nil),
		pipeline.NewSelection(map[string]string{"team": "India"}),
		pipeline.NewSelection(map[string]string{"season": "2009"}),
	}
	want := make([]int, len(sels))
	for i, s := range sels {
		rep, err := ds.Refresh(context.Background(), s)
		require.NoError(t, err)
		want[i] = rep.Rows
	}

	var wg sync.WaitGroup
	errs := make(chan string, 30)
	for n := 0; n < 30; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			i := n % len(sels)
			rep, err := ds.Refresh(context.Background(), sels[i])
			if err != nil || rep.Rows != want[i] {
				errs <- sels[i].Get("team")
			}
		}(n)
	}
	wg.Wait()
	close(errs)
	assert.Empty(t, errs)
}

func TestRefreshHonorsCanceledContext(t *testing.T) {
	ds := open(t, "scores", "", DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ds.Refresh(ctx, pipeline.NewSelection(nil))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenWarnsOnOverlongRows(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	opts := DefaultOptions()
	opts.Logger = logger

	content := "Name,Survived\n" +
		"\"Braund, Mr. Owen Harris\",0,stray\n" +
		"\"Heikkinen, Miss. Laina\",1\n"
	ds := open(t, "titanic", content, opts)
	assert.Equal(t, 2, ds.Table().Len())

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Data["overlong"] == 1 {
			found = true
			assert.Contains(t, e.Message, "extra cells dropped")
		}
	}
	assert.True(t, found, "expected an overlong-row warning")
}
