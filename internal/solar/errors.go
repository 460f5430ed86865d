package solar

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a site or irradiance profile fails a range check.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyCatalog is returned when no panel models are supplied.
	ErrEmptyCatalog = errors.New("panel catalog is empty")
	// ErrInvalidCatalogEntry is returned when a catalog entry has a non-positive rated power
	// or a negative price.
	ErrInvalidCatalogEntry = errors.New("invalid catalog entry")
	// ErrDegenerateProduction is returned when a panel's daily production is zero or not finite.
	ErrDegenerateProduction = errors.New("degenerate panel production")
	// ErrInvalidConfig is returned when a SizingConfig factor is not a positive number.
	ErrInvalidConfig = errors.New("invalid sizing config")

	// ErrNotFound is returned by stores when a kit or panel does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by stores when a record with the same ID already exists.
	ErrConflict = errors.New("already exists")
	// ErrKitIncomplete is returned when a kit lacks coordinates or consumption.
	ErrKitIncomplete = errors.New("kit is missing sizing data")
	// ErrIrradianceUnavailable is returned when no provider produced a usable profile.
	ErrIrradianceUnavailable = errors.New("irradiance data unavailable")
)

// CatalogEntryError identifies the catalog entry that failed validation.
type CatalogEntryError struct {
	PanelID string
	Reason  string
}

func (e *CatalogEntryError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidCatalogEntry, e.PanelID, e.Reason)
}

func (e *CatalogEntryError) Unwrap() error { return ErrInvalidCatalogEntry }

// DegenerateProductionError identifies the panel whose production could not size the demand.
type DegenerateProductionError struct {
	PanelID    string
	Production float64
}

func (e *DegenerateProductionError) Error() string {
	return fmt.Sprintf("%s for panel %q: daily production %v kWh", ErrDegenerateProduction, e.PanelID, e.Production)
}

func (e *DegenerateProductionError) Unwrap() error { return ErrDegenerateProduction }
