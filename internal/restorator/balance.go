package restorator

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/urbanlab/popforecast/internal/models"
)

// DefaultEngine is the built-in implementation of Engine.
type DefaultEngine struct{}

var _ Engine = (*DefaultEngine)(nil)

func NewEngine() *DefaultEngine {
	return &DefaultEngine{}
}

// node is one territory during balancing, with its direct houses and
// child territories resolved.
type node struct {
	territory models.Territory
	children  []*node
	houses    []int // indexes into the houses slice

	subtreeArea      float64
	subtreeHouses    int
	assigned         int64
	childrenAssigned int64
	housesAssigned   int64
}

// Balance distributes the fetched root population over the subtree.
// At every territory the population is apportioned among its child
// territories and its direct houses by largest remainder, so the sums
// stay exact at every level: a child territory weighs its reported
// population when any sibling reported one, otherwise its subtree
// living area; a house always weighs its living area.
func (e *DefaultEngine) Balance(ctx context.Context, population int64, territories []models.Territory, houses []models.House, main *models.Territory) (*BalanceResult, error) {
	if main == nil {
		return nil, fmt.Errorf("balance: main territory is required")
	}
	if population < 0 {
		return nil, fmt.Errorf("balance: population must be non-negative, got %d", population)
	}

	nodes := make(map[int64]*node, len(territories)+1)
	root := &node{territory: *main}
	root.territory.Population = population
	nodes[main.TerritoryID] = root

	for _, t := range territories {
		nodes[t.TerritoryID] = &node{territory: t}
	}
	for _, t := range territories {
		if t.ParentID == nil {
			continue
		}
		parent, ok := nodes[*t.ParentID]
		if !ok {
			// Orphans under the requested subtree root are attached to it.
			parent = root
		}
		if t.TerritoryID == main.TerritoryID {
			continue
		}
		parent.children = append(parent.children, nodes[t.TerritoryID])
	}

	balancedHouses := make([]models.BalancedHouse, len(houses))
	for i, h := range houses {
		owner, ok := nodes[h.TerritoryID]
		if !ok {
			return nil, fmt.Errorf("balance: house %d references territory %d outside the subtree", h.HouseID, h.TerritoryID)
		}
		owner.houses = append(owner.houses, i)
		balancedHouses[i] = models.BalancedHouse{
			HouseID:     h.HouseID,
			TerritoryID: h.TerritoryID,
			LivingArea:  h.LivingArea,
		}
	}

	computeSubtreeStats(root, houses)
	root.assigned = population
	distribute(root, houses, balancedHouses)

	balancedTerritories := make([]models.BalancedTerritory, 0, len(nodes))
	collectTerritories(root, &balancedTerritories)
	sort.Slice(balancedTerritories, func(i, j int) bool {
		return balancedTerritories[i].TerritoryID < balancedTerritories[j].TerritoryID
	})

	zap.S().Named("restorator").Infow("balanced territory subtree",
		"territory_id", main.TerritoryID,
		"territories", len(balancedTerritories),
		"houses", len(balancedHouses),
		"population", population)

	return &BalanceResult{Territories: balancedTerritories, Houses: balancedHouses}, nil
}

func computeSubtreeStats(n *node, houses []models.House) {
	for _, i := range n.houses {
		n.subtreeArea += houses[i].LivingArea
	}
	n.subtreeHouses = len(n.houses)
	for _, child := range n.children {
		computeSubtreeStats(child, houses)
		n.subtreeArea += child.subtreeArea
		n.subtreeHouses += child.subtreeHouses
	}
}

func distribute(n *node, houses []models.House, balanced []models.BalancedHouse) {
	units := len(n.children) + len(n.houses)
	if units == 0 {
		return
	}

	weights := make([]float64, 0, units)

	var reportedSum int64
	for _, child := range n.children {
		reportedSum += child.territory.Population
	}
	for _, child := range n.children {
		if reportedSum > 0 {
			weights = append(weights, float64(child.territory.Population))
		} else {
			weights = append(weights, child.subtreeArea)
		}
	}
	for _, i := range n.houses {
		weights = append(weights, houses[i].LivingArea)
	}

	shares := apportion(n.assigned, weights)

	for ci, child := range n.children {
		child.assigned = shares[ci]
		n.childrenAssigned += shares[ci]
		distribute(child, houses, balanced)
	}
	for hi, i := range n.houses {
		share := shares[len(n.children)+hi]
		balanced[i].Population = share
		n.housesAssigned += share
	}
}

// apportion splits total into integer shares proportional to weights
// using the largest-remainder method, so the shares always sum exactly
// to total. All-zero weights fall back to an even split.
func apportion(total int64, weights []float64) []int64 {
	shares := make([]int64, len(weights))
	if len(weights) == 0 || total <= 0 {
		return shares
	}

	var weightSum float64
	for _, w := range weights {
		weightSum += w
	}
	if weightSum == 0 {
		for i := range weights {
			weights[i] = 1
		}
		weightSum = float64(len(weights))
	}

	type remainder struct {
		index int
		frac  float64
	}
	remainders := make([]remainder, len(weights))

	var distributed int64
	for i, w := range weights {
		exact := float64(total) * w / weightSum
		shares[i] = int64(exact)
		distributed += shares[i]
		remainders[i] = remainder{index: i, frac: exact - float64(shares[i])}
	}

	sort.Slice(remainders, func(i, j int) bool {
		if remainders[i].frac != remainders[j].frac {
			return remainders[i].frac > remainders[j].frac
		}
		return remainders[i].index < remainders[j].index
	})

	for i := int64(0); i < total-distributed; i++ {
		shares[remainders[i%int64(len(remainders))].index]++
	}
	return shares
}

func collectTerritories(n *node, out *[]models.BalancedTerritory) {
	var housesPopulation int64
	for _, child := range n.children {
		collectTerritories(child, out)
	}
	housesPopulation = n.housesAssigned
	for _, child := range n.children {
		housesPopulation += subtreeHousesPopulation(child)
	}

	*out = append(*out, models.BalancedTerritory{
		TerritoryID:                n.territory.TerritoryID,
		Name:                       n.territory.Name,
		ParentID:                   n.territory.ParentID,
		Level:                      n.territory.Level,
		Population:                 n.assigned,
		InnerTerritoriesPopulation: n.childrenAssigned,
		HousesNumber:               n.subtreeHouses,
		HousesPopulation:           housesPopulation,
		TotalLivingArea:            n.subtreeArea,
	})
}

func subtreeHousesPopulation(n *node) int64 {
	total := n.housesAssigned
	for _, child := range n.children {
		total += subtreeHousesPopulation(child)
	}
	return total
}
