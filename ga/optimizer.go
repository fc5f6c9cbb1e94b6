// Package ga implements the genetic-algorithm fleet planner: a stateless,
// deterministic function from (seed, robots, pending jobs, sim time) to a
// whole-fleet assignment list.
package ga

import (
	"sort"

	"github.com/fleetsim/fleetsim/sim"
)

// Config holds the GA operator parameters plus the two cost-model
// constants the fitness function shares with the simulation engine.
type Config struct {
	PopulationSize int
	Generations    int
	EliteSize      int
	MutationRate   float64 // per-gene
	CrossoverRate  float64
	// ServiceTimeS and BatteryDrainPerSec mirror the engine so projected
	// finish times and battery levels match what the simulator will do.
	ServiceTimeS       float64
	BatteryDrainPerSec float64
}

// DefaultConfig returns the documented planner defaults.
func DefaultConfig() Config {
	return Config{
		PopulationSize:     64,
		Generations:        80,
		EliteSize:          4,
		MutationRate:       0.10,
		CrossoverRate:      0.90,
		ServiceTimeS:       5,
		BatteryDrainPerSec: 0.25,
	}
}

// RobotInput is the dispatcher's view of one robot at replan time.
type RobotInput struct {
	ID      int     `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Speed   float64 `json:"speed"`
	Battery float64 `json:"battery"`
	State   string  `json:"state"`
}

// JobInput is one pending job at replan time.
type JobInput struct {
	ID         string    `json:"id"`
	Pickup     sim.Point `json:"pickup"`
	Dropoff    sim.Point `json:"dropoff"`
	DeadlineTS int64     `json:"deadline_ts"`
	Priority   int       `json:"priority"`
}

// Request is an optimize call. Robots and PendingJobs may arrive in any
// order; Optimize sorts both into canonical order on entry.
type Request struct {
	RunID       string       `json:"run_id"`
	Seed        int64        `json:"seed"`
	Mode        string       `json:"mode"`
	SimTimeS    float64      `json:"sim_time_s"`
	Robots      []RobotInput `json:"robots"`
	PendingJobs []JobInput   `json:"pending_jobs"`
}

// Assignment maps one job to one robot. Score carries the total fitness of
// the winning chromosome.
type Assignment struct {
	JobID   string  `json:"job_id"`
	RobotID int     `json:"robot_id"`
	Score   float64 `json:"score"`
}

// Meta reports how the answer was produced.
type Meta struct {
	BestScore      float64 `json:"best_score"`
	Generations    int     `json:"generations"`
	PopulationSize int     `json:"population_size"`
	Seed           int64   `json:"seed"`
}

// Response carries assignments in canonical job order.
type Response struct {
	Assignments []Assignment `json:"assignments"`
	Meta        Meta         `json:"meta"`
}

// Optimize evolves a job→robot mapping and returns the best one found.
// Same (seed, robots, pending_jobs, sim_time_s) gives byte-identical
// output: the only randomness source is the seeded planner stream, and
// every sort is stable with explicit tie-breaks.
func Optimize(req Request, cfg Config) Response {
	meta := Meta{
		Generations:    cfg.Generations,
		PopulationSize: cfg.PopulationSize,
		Seed:           req.Seed,
	}
	if len(req.PendingJobs) == 0 || len(req.Robots) == 0 {
		return Response{Assignments: []Assignment{}, Meta: meta}
	}

	robots := append([]RobotInput(nil), req.Robots...)
	jobs := append([]JobInput(nil), req.PendingJobs...)
	sort.SliceStable(robots, func(i, j int) bool { return robots[i].ID < robots[j].ID })
	sortJobsCanonical(jobs)

	rng := sim.NewSeedBank(req.Seed).Stream(sim.StreamPlanner)
	ev := evaluator{robots: robots, jobs: jobs, simTime: req.SimTimeS, cfg: cfg}

	nGenes := len(jobs)
	nRobots := len(robots)

	// Individual 0 is the greedy round-robin seed; the rest are uniform
	// random draws. Draw order: each random individual's genes left to
	// right, individuals in index order.
	pop := make([][]int, cfg.PopulationSize)
	pop[0] = make([]int, nGenes)
	for k := range pop[0] {
		pop[0][k] = k % nRobots
	}
	for i := 1; i < cfg.PopulationSize; i++ {
		genes := make([]int, nGenes)
		for k := range genes {
			genes[k] = rng.Intn(nRobots)
		}
		pop[i] = genes
	}
	fit := make([]float64, cfg.PopulationSize)
	for i, genes := range pop {
		fit[i] = ev.fitness(genes)
	}

	for gen := 0; gen < cfg.Generations; gen++ {
		sortByFitness(pop, fit)

		next := make([][]int, 0, cfg.PopulationSize)
		for e := 0; e < cfg.EliteSize && e < len(pop); e++ {
			next = append(next, append([]int(nil), pop[e]...))
		}
		for len(next) < cfg.PopulationSize {
			p1 := pop[tournament(fit, rng)]
			p2 := pop[tournament(fit, rng)]
			child := crossover(p1, p2, cfg.CrossoverRate, rng)
			mutate(child, nRobots, cfg.MutationRate, rng)
			next = append(next, child)
		}
		pop = next
		for i, genes := range pop {
			fit[i] = ev.fitness(genes)
		}
	}
	sortByFitness(pop, fit)

	best, bestScore := pop[0], fit[0]
	meta.BestScore = bestScore
	out := make([]Assignment, nGenes)
	for k, g := range best {
		out[k] = Assignment{JobID: jobs[k].ID, RobotID: robots[g].ID, Score: bestScore}
	}
	return Response{Assignments: out, Meta: meta}
}

// sortJobsCanonical orders jobs by (deadline_ts ASC, priority DESC, id ASC).
func sortJobsCanonical(jobs []JobInput) {
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]
		if a.DeadlineTS != b.DeadlineTS {
			return a.DeadlineTS < b.DeadlineTS
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
}

// sortByFitness orders the population by ascending fitness; exact fitness
// ties break on encoded-chromosome lexicographic order so the ranking is
// independent of the incoming slice order.
func sortByFitness(pop [][]int, fit []float64) {
	idx := make([]int, len(pop))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if fit[idx[a]] != fit[idx[b]] {
			return fit[idx[a]] < fit[idx[b]]
		}
		return lexLess(pop[idx[a]], pop[idx[b]])
	})
	newPop := make([][]int, len(pop))
	newFit := make([]float64, len(fit))
	for i, j := range idx {
		newPop[i] = pop[j]
		newFit[i] = fit[j]
	}
	copy(pop, newPop)
	copy(fit, newFit)
}

func lexLess(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// tournament draws three contenders and returns the index of the fittest;
// exact ties go to the lowest index.
func tournament(fit []float64, rng randSource) int {
	best := rng.Intn(len(fit))
	for n := 0; n < 2; n++ {
		c := rng.Intn(len(fit))
		if fit[c] < fit[best] || (fit[c] == fit[best] && c < best) {
			best = c
		}
	}
	return best
}

// crossover applies one-point crossover when a draw falls below rate;
// otherwise (or with a single gene) the child is a copy of the first parent.
func crossover(p1, p2 []int, rate float64, rng randSource) []int {
	child := append([]int(nil), p1...)
	if len(p1) > 1 && rng.Float64() < rate {
		cut := 1 + rng.Intn(len(p1)-1)
		copy(child[cut:], p2[cut:])
	}
	return child
}

// mutate redraws each gene uniformly with the per-gene mutation rate.
func mutate(genes []int, nRobots int, rate float64, rng randSource) {
	for k := range genes {
		if rng.Float64() < rate {
			genes[k] = rng.Intn(nRobots)
		}
	}
}

// randSource is the subset of *rand.Rand the operators draw from.
type randSource interface {
	Intn(n int) int
	Float64() float64
}
