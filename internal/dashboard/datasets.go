package dashboard

import (
	"fmt"

	"github.com/KaramelBytes/dashloom/internal/pipeline"
	"github.com/KaramelBytes/dashloom/internal/table"
)

func init() {
	Register(playStore())
	Register(odiMatches())
	Register(titanic())
	Register(studentScores())
}

func playStore() *Definition {
	return &Definition{
		Name:        "playstore",
		Title:       "Google Play Store Analysis",
		Description: "Apps by category, rating and installs",
		Source:      "googleplaystore.csv",
		Required:    []string{"App", "Category", "Rating", "Reviews", "Installs"},
		Normalization: pipeline.Normalization{
			Rules: []pipeline.FieldRule{
				{Column: "Installs", Kind: table.Int, Parse: pipeline.ParseInstalls},
				{Column: "Reviews", Kind: table.Int, Parse: pipeline.ParseIntOrZero},
				{Column: "Rating", Kind: table.Float, Parse: pipeline.ParseFloatOrMissing},
			},
			DropIfMissing: []string{"Category"},
		},
		Filters: []pipeline.Filter{
			{Name: "category", Label: "Select Category", Kind: pipeline.Equals, Columns: []string{"Category"}},
			{Name: "min_rating", Label: "Minimum Rating", Kind: pipeline.AtLeast, Columns: []string{"Rating"}},
			{Name: "min_installs", Label: "Minimum Installs", Kind: pipeline.AtLeast, Columns: []string{"Installs"}},
		},
		Build: buildPlayStore,
	}
}

func buildPlayStore(f *Frame) error {
	f.Metric("Apps shown", table.IntValue(int64(f.View.Len())))

	if cat := f.Selection.Get("category"); f.Selection.Active("category") && f.View.Len() > 0 {
		avg, ok, err := pipeline.Mean(f.View, "Rating")
		if err != nil {
			return err
		}
		if ok {
			f.Metric("Average Rating in "+cat, table.FloatValue(Round2(avg)))
		} else {
			f.Metric("Average Rating in "+cat, table.Missing(table.Float))
		}
		bins, err := pipeline.Histogram(f.View, "Rating", f.Options.HistogramBins)
		if err != nil {
			return err
		}
		f.Add(HistogramPanel("Ratings Distribution in "+cat, "Rating", bins))
	}

	top, err := pipeline.TopN(f.View, "Installs", f.Options.TopN)
	if err != nil {
		return err
	}
	top, err = pipeline.Derive(top, []pipeline.DerivedRule{pipeline.StoreLink("Visit Store")})
	if err != nil {
		return err
	}
	p, err := TablePanel(fmt.Sprintf("Top %d Apps by Installs", f.Options.TopN), Grid, top,
		"App", "Category", "Installs", "Rating", "Reviews", "Visit Store")
	if err != nil {
		return err
	}
	f.Add(p)

	// Category rankings describe the whole store, not the filtered view.
	means, err := pipeline.MeanBy(f.Full, "Category", "Rating")
	if err != nil {
		return err
	}
	f.Add(MeanPanel(fmt.Sprintf("Top %d Categories by Average Rating", f.Options.TopN), headMeans(means, f.Options.TopN)))
	counts, err := pipeline.CountBy(f.Full, "Category")
	if err != nil {
		return err
	}
	f.Add(CountPanel(fmt.Sprintf("Top %d Categories by Number of Apps", f.Options.TopN), Bar, headCounts(counts, f.Options.TopN)))

	reviewed := pipeline.Apply(f.View, func(r table.Record) bool {
		n, ok := r.Get("Reviews").Number()
		return ok && n > 0 && !r.Get("Rating").IsMissing()
	})
	if reviewed.Len() == 0 {
		f.Notice(Info, "No reviewed and rated apps in this selection")
		return nil
	}
	sc, err := TablePanel("Reviews vs Rating", Scatter, reviewed, "Reviews", "Rating")
	if err != nil {
		return err
	}
	sc.XLabel, sc.YLabel = "Reviews (log scale)", "Rating"
	f.Add(sc)
	return nil
}

func odiMatches() *Definition {
	return &Definition{
		Name:        "odi",
		Title:       "ODI Match Analytics Dashboard",
		Description: "Toss, venue, win-type and player-of-the-match insights",
		Source:      "ODI_Match_info.csv",
		Required: []string{
			"season", "team1", "team2", "toss_winner", "toss_decision", "winner",
			"venue", "win_by_runs", "win_by_wickets", "player_of_match",
		},
		Normalization: pipeline.Normalization{
			Rules: []pipeline.FieldRule{
				{Column: "win_by_runs", Kind: table.Int, Parse: pipeline.ParseIntOrMissing},
				{Column: "win_by_wickets", Kind: table.Int, Parse: pipeline.ParseIntOrMissing},
			},
		},
		Derived: []pipeline.DerivedRule{
			pipeline.ClassifyWin("win_type", "win_by_runs", "win_by_wickets"),
		},
		Filters: []pipeline.Filter{
			{Name: "season", Label: "Select Season", Kind: pipeline.Equals, Columns: []string{"season"}},
			{Name: "team", Label: "Select Team", Kind: pipeline.Membership, Columns: []string{"team1", "team2", "winner", "toss_winner"}},
		},
		Choices: map[string][]string{"team": {"team1", "team2"}},
		Build:   buildODI,
	}
}

func buildODI(f *Frame) error {
	// Home: quick insights over every match.
	f.Metric("Total Matches", table.IntValue(int64(f.Full.Len())))
	for _, m := range []struct{ label, col string }{
		{"Unique Teams", "team1"},
		{"Unique Venues", "venue"},
		{"Seasons", "season"},
	} {
		n, err := pipeline.NUnique(f.Full, m.col)
		if err != nil {
			return err
		}
		f.Metric(m.label, table.IntValue(int64(n)))
	}
	f.Metric("Matches shown", table.IntValue(int64(f.View.Len())))
	f.Asset("stadium", "stadium.jpeg", Info)

	// Toss insights.
	toss, err := pipeline.CountBy(f.View, "toss_winner")
	if err != nil {
		return err
	}
	f.Add(CountPanel("Tosses Won per Team", Bar, toss))
	shares, err := pipeline.Shares(f.View, "toss_winner")
	if err != nil {
		return err
	}
	f.Add(SharePanel("Toss Win Percentage", shares))
	ct, err := pipeline.CrosstabOf(f.View, "toss_winner", "winner")
	if err != nil {
		return err
	}
	f.Add(MatrixPanel("Toss Winner vs Match Winner", ct))
	dec, err := pipeline.CrosstabOf(f.View, "toss_decision", "winner")
	if err != nil {
		return err
	}
	f.Add(MatrixPanel("Toss Decision (Bat/Field) vs Match Winner", dec))

	// Seasons, venues and win types.
	pairs, err := pipeline.CountByPair(f.View, "season", "toss_winner")
	if err != nil {
		return err
	}
	f.Add(PairPanel("Toss Wins Over Seasons (per Team)", Line, "season", "toss_winner", "Toss Wins", pairs))
	venues, err := pipeline.CountBy(f.View, "venue")
	if err != nil {
		return err
	}
	f.Add(CountPanel(fmt.Sprintf("Top %d Venues by Matches Played", f.Options.TopN), Bar, headCounts(venues, f.Options.TopN)))
	wins, err := pipeline.CountBy(f.View, "win_type")
	if err != nil {
		return err
	}
	f.Add(CountPanel("Win Types Distribution", Histogram, wins))

	// Player highlights.
	pom, err := pipeline.CountBy(f.View, "player_of_match")
	if err != nil {
		return err
	}
	pom = headCounts(pom, f.Options.TopN)
	f.Add(CountPanel(fmt.Sprintf("Top %d Players (Player of the Match Awards)", f.Options.TopN), Bar, pom))
	if len(pom) > 0 {
		best := pom[0]
		f.Metric("Best Performer", table.Str(best.Key))
		f.Metric("Best Performer Awards", table.IntValue(int64(best.Count)))
		f.Asset(best.Key, best.Key, Warning, ".jpg")
	}
	return nil
}

func titanic() *Definition {
	return &Definition{
		Name:        "titanic",
		Title:       "Titanic Deaths vs Survival",
		Description: "Passenger titles against survival",
		Source:      "titanic_data.csv",
		Required:    []string{"Name", "Survived"},
		Normalization: pipeline.Normalization{
			Rules: []pipeline.FieldRule{
				{Column: "Survived", Kind: table.Int, Parse: pipeline.ParseIntOrMissing},
			},
		},
		Derived: []pipeline.DerivedRule{
			pipeline.ExtractTitle("title", "Name"),
			pipeline.Lookup("outcome", "Survived", map[string]string{"0": "Died", "1": "Survived"}),
		},
		Filters: []pipeline.Filter{
			{Name: "title", Label: "Select Title", Kind: pipeline.Equals, Columns: []string{"title"}},
			{Name: "survived", Label: "Survived", Kind: pipeline.Equals, Columns: []string{"Survived"}},
		},
		Build: buildTitanic,
	}
}

func buildTitanic(f *Frame) error {
	f.Metric("Passengers", table.IntValue(int64(f.View.Len())))
	rate, ok, err := pipeline.Mean(f.View, "Survived")
	if err != nil {
		return err
	}
	if ok {
		f.Metric("Survival Rate %", table.FloatValue(Round2(rate*100)))
	} else {
		f.Metric("Survival Rate %", table.Missing(table.Float))
	}
	titles, err := pipeline.CountBy(f.View, "title")
	if err != nil {
		return err
	}
	f.Add(CountPanel("Title Counts", Bar, titles))
	ct, err := pipeline.CrosstabOf(f.View, "title", "outcome")
	if err != nil {
		return err
	}
	f.Add(MatrixPanel("Survival by Title", ct))
	return nil
}

func studentScores() *Definition {
	return &Definition{
		Name:        "scores",
		Title:       "Student Scores",
		Description: "Built-in sample: one score per student",
		Sample:      scoresSample,
		Required:    []string{"Students", "Scores"},
		Normalization: pipeline.Normalization{
			Rules: []pipeline.FieldRule{
				{Column: "Scores", Kind: table.Int, Parse: pipeline.ParseIntOrMissing},
			},
		},
		Filters: []pipeline.Filter{
			{Name: "min_score", Label: "Minimum Score", Kind: pipeline.AtLeast, Columns: []string{"Scores"}},
		},
		Build: buildScores,
	}
}

func scoresSample() *table.Raw {
	rows := [][]string{
		{"Ali", "85"},
		{"Sara", "92"},
		{"Ahmed", "78"},
		{"Zara", "88"},
		{"Usman", "95"},
	}
	return &table.Raw{Name: "scores (built-in)", Header: []string{"Students", "Scores"}, Rows: rows, Total: len(rows)}
}

func buildScores(f *Frame) error {
	avg, ok, err := pipeline.Mean(f.View, "Scores")
	if err != nil {
		return err
	}
	if ok {
		f.Metric("Average Score", table.FloatValue(Round2(avg)))
	} else {
		f.Metric("Average Score", table.Missing(table.Float))
	}
	p, err := TablePanel("Data Table", Grid, f.View, "Students", "Scores")
	if err != nil {
		return err
	}
	f.Add(p)

	s := make([]Point, 0, f.View.Len())
	for _, r := range f.View.Records() {
		n, _ := r.Get("Scores").Number()
		s = append(s, Point{Label: r.Get("Students").Text(), Value: n})
	}
	f.Add(Panel{Title: "Student Scores", Kind: Bar, XLabel: "Students", YLabel: "Scores", Series: s})
	return nil
}
