package landcover

import (
	"strings"

	"github.com/twpayne/go-proj/v10"
)

// TransformEnvelope returns the envelope, in targetCRS, of the corners of
// envelope, in sourceCRS. Coordinates in geographic CRSs are in longitude,
// latitude order.
func TransformEnvelope(envelope Envelope, sourceCRS, targetCRS string) (Envelope, error) {
	pj, err := proj.NewCRSToCRS(sourceCRS, targetCRS, nil)
	if err != nil {
		return Envelope{}, err
	}

	coords := [][]float64{
		{envelope.Left, envelope.Bottom},
		{envelope.Right, envelope.Bottom},
		{envelope.Right, envelope.Top},
		{envelope.Left, envelope.Top},
	}
	if isLatLon(sourceCRS) {
		flipCoords(coords)
	}
	if err := pj.ForwardFloat64Slices(coords); err != nil {
		return Envelope{}, err
	}
	if isLatLon(targetCRS) {
		flipCoords(coords)
	}

	result := Envelope{
		Left:   coords[0][0],
		Right:  coords[0][0],
		Bottom: coords[0][1],
		Top:    coords[0][1],
	}
	for _, coord := range coords[1:] {
		result.Left = min(result.Left, coord[0])
		result.Right = max(result.Right, coord[0])
		result.Bottom = min(result.Bottom, coord[1])
		result.Top = max(result.Top, coord[1])
	}
	return result, nil
}

// isLatLon returns whether crs has latitude, longitude axis order.
func isLatLon(crs string) bool {
	return strings.EqualFold(crs, "epsg:4326")
}

func flipCoords(coords [][]float64) {
	for i, coord := range coords {
		coords[i][0], coords[i][1] = coord[1], coord[0]
	}
}
