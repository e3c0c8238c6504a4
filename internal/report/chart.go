package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/cartridge/forager/internal/agent"
)

// Series accumulates reward over a run, sampling every Every ticks.
// Observe matches runner.Observer.
type Series struct {
	Name  string
	Every uint64

	cumulative float64
	food       uint64
	steps      []uint64
	rewards    []float64
	eaten      []uint64
}

// NewSeries returns a series sampling one point every `every` ticks.
func NewSeries(name string, every uint64) *Series {
	if every == 0 {
		every = 1
	}
	return &Series{Name: name, Every: every}
}

// Observe records one tick.
func (s *Series) Observe(step uint64, res agent.TickResult) {
	s.cumulative += res.Reward
	if res.FoodRelocated {
		s.food++
	}
	if step%s.Every == 0 {
		s.steps = append(s.steps, step)
		s.rewards = append(s.rewards, s.cumulative)
		s.eaten = append(s.eaten, s.food)
	}
}

// Len is the number of sampled points.
func (s *Series) Len() int { return len(s.steps) }

// Cumulative is the total reward observed so far.
func (s *Series) Cumulative() float64 { return s.cumulative }

// Food is the number of food items consumed so far.
func (s *Series) Food() uint64 { return s.food }

// WriteChart renders an HTML page with the cumulative reward and food
// count of each series. The x axis comes from the first series.
func WriteChart(w io.Writer, title string, series ...*Series) error {
	if len(series) == 0 {
		return fmt.Errorf("no series to chart")
	}

	steps := make([]string, 0, series[0].Len())
	for _, step := range series[0].steps {
		steps = append(steps, fmt.Sprintf("%d", step))
	}

	reward := charts.NewLine()
	reward.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "cumulative reward",
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "reward"}),
	)
	reward.SetXAxis(steps)

	food := charts.NewLine()
	food.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: "food consumed",
		}),
		charts.WithInitializationOpts(opts.Initialization{
			Theme: "shine",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "food"}),
	)
	food.SetXAxis(steps)

	for _, s := range series {
		rewardItems := make([]opts.LineData, 0, len(s.rewards))
		for _, v := range s.rewards {
			rewardItems = append(rewardItems, opts.LineData{Value: v})
		}
		reward.AddSeries(s.Name, rewardItems)

		foodItems := make([]opts.LineData, 0, len(s.eaten))
		for _, v := range s.eaten {
			foodItems = append(foodItems, opts.LineData{Value: v})
		}
		food.AddSeries(s.Name, foodItems)
	}

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(reward, food)
	return page.Render(w)
}
