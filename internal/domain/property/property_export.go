package property

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/aqarbay-api/internal/types"
)

var exportHeader = []string{
	"ID", "Title (EN)", "Title (AR)", "Purpose", "Type", "Status",
	"Price", "Currency", "Area (m²)", "Bedrooms", "Bathrooms",
	"Furnished", "Parking", "Floor", "Year Built",
	"Location", "Agent", "Featured", "Published", "Created At",
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func optID(v *uuid.UUID) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func exportRecord(p types.Property) []string {
	return []string{
		p.ID.String(),
		p.TitleEN,
		p.TitleAR,
		string(p.Purpose),
		string(p.Type),
		string(p.Status),
		strconv.FormatFloat(p.PriceAmount, 'f', -1, 64),
		string(p.PriceCurrency),
		optFloat(p.AreaM2),
		optInt(p.Bedrooms),
		optInt(p.Bathrooms),
		yesNo(p.Furnished),
		yesNo(p.Parking),
		optInt(p.Floor),
		optInt(p.YearBuilt),
		optID(p.LocationID),
		optID(p.AgentID),
		yesNo(p.Featured),
		yesNo(p.Published),
		p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// writeCSV writes the export header followed by one row per property.
func writeCSV(w io.Writer, properties []types.Property) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, p := range properties {
		if err := cw.Write(exportRecord(p)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
