package stats

import "github.com/Adithya-Monish-Kumar-K/titan-stats/internal/webapp"

const (
	CounterDataPath = "/_titan/stats/counterdata"
	GraphPath       = "/_titan/stats/graph"
	IncrementPath   = "/_titan/stats/increment"
)

// Routes returns the stats route table. The increment route is only included
// when opts carries an Incrementer.
func Routes(opts Options) []webapp.Route {
	routes := []webapp.Route{
		{Path: CounterDataPath, Factory: NewCounterDataHandler(opts)},
		{Path: GraphPath, Factory: NewGraphHandler(opts)},
	}
	if opts.Incrementer != nil {
		routes = append(routes, webapp.Route{Path: IncrementPath, Factory: NewIncrementHandler(opts)})
	}
	return routes
}
