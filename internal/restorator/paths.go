package restorator

import (
	"fmt"
	"path/filepath"

	"github.com/urbanlab/popforecast/internal/models"
)

// ForecastDBPath is the naming convention for per-year forecast
// databases. It is the only coupling between the forecast writer and
// the readers that extract and republish the facts.
func ForecastDBPath(workingDir string, year int, territoryID int64, scenario models.Scenario) string {
	return filepath.Join(workingDir, fmt.Sprintf("year_%d_terr_%d_scen_%s.sqlite", year, territoryID, scenario))
}
