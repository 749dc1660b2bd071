package landcover

import (
	"errors"
)

var errParse = errors.New("parse error")

// A GeoKey is a GeoTIFF GeoKey identifier.
type GeoKey uint16

// GeoKeys.
const (
	GeoKeyGTModelType  GeoKey = 1024
	GeoKeyGTRasterType GeoKey = 1025
	GeoKeyGTCitation   GeoKey = 1026

	GeoKeyGeodeticCRS   GeoKey = 2048
	GeoKeyGeogCitation  GeoKey = 2049
	GeoKeyGeodeticDatum GeoKey = 2050

	GeoKeyProjectedCRS GeoKey = 3072
	GeoKeyPCSCitation  GeoKey = 3073
	GeoKeyProjection   GeoKey = 3074
	GeoKeyProjMethod   GeoKey = 3075
	GeoKeyLinearUnits2 GeoKey = 3076
)

// Model types.
const (
	modelTypeProjected  = 1
	modelTypeGeographic = 2
	rasterTypePixelArea = 1
	userDefined         = 32767
)

const (
	geoDoubleParamsTag = 34736
	geoASCIIParamsTag  = 34737
)

// ParsedGeoKeys are the values of a GeoKey directory.
type ParsedGeoKeys struct {
	Params       map[GeoKey]int
	DoubleParams map[GeoKey]float64
	ASCIIParams  map[GeoKey]string
}

// ParseGeoKeys parses a GeoKey directory and its parameter tags.
func ParseGeoKeys(directory []uint16, doubleParams []float64, asciiParams []byte) (*ParsedGeoKeys, error) {
	if len(directory) < 4 {
		return nil, errParse
	}

	if keyDirectoryVersion := int(directory[0]); keyDirectoryVersion != 1 {
		return nil, errParse
	}
	if keyRevision := int(directory[1]); keyRevision != 1 {
		return nil, errParse
	}
	if minorRevision := int(directory[2]); minorRevision != 0 && minorRevision != 1 {
		return nil, errParse
	}
	numberOfKeys := int(directory[3])
	if len(directory) != 4+4*numberOfKeys {
		return nil, errParse
	}

	parsedGeoKeys := &ParsedGeoKeys{
		Params:       make(map[GeoKey]int),
		DoubleParams: make(map[GeoKey]float64),
		ASCIIParams:  make(map[GeoKey]string),
	}
	for i := range numberOfKeys {
		keyValues := directory[4+4*i : 4+4*(i+1)]
		key := GeoKey(keyValues[0])
		tiffTagLocation := int(keyValues[1])
		count := int(keyValues[2])
		switch tiffTagLocation {
		case 0:
			if count != 1 {
				return nil, errParse
			}
			parsedGeoKeys.Params[key] = int(keyValues[3])
		case geoDoubleParamsTag:
			index := int(keyValues[3])
			if count != 1 {
				return nil, ErrUnsupported
			}
			if index >= len(doubleParams) {
				return nil, errParse
			}
			parsedGeoKeys.DoubleParams[key] = doubleParams[index]
		case geoASCIIParamsTag:
			index := int(keyValues[3])
			if index+count > len(asciiParams) {
				return nil, errParse
			}
			parsedGeoKeys.ASCIIParams[key] = string(asciiParams[index : index+count])
		default:
			return nil, ErrUnsupported
		}
	}
	return parsedGeoKeys, nil
}

// SRID returns the EPSG code of the projected CRS, or of the geodetic CRS if
// there is no projected CRS. It returns zero if neither is an EPSG code.
func (k *ParsedGeoKeys) SRID() int {
	for _, key := range []GeoKey{GeoKeyProjectedCRS, GeoKeyGeodeticCRS} {
		if srid, ok := k.Params[key]; ok && srid != 0 && srid != userDefined {
			return srid
		}
	}
	return 0
}

// encodeGeoKeys returns the GeoKey directory describing the CRS with the given
// EPSG code. Codes in the range used by EPSG for geographic CRSs are written
// as geodetic, everything else as projected.
func encodeGeoKeys(srid int) []uint16 {
	modelType, crsKey := modelTypeProjected, GeoKeyProjectedCRS
	if 4000 <= srid && srid < 5000 {
		modelType, crsKey = modelTypeGeographic, GeoKeyGeodeticCRS
	}
	return []uint16{
		1, 1, 0, 3,
		uint16(GeoKeyGTModelType), 0, 1, uint16(modelType),
		uint16(GeoKeyGTRasterType), 0, 1, rasterTypePixelArea,
		uint16(crsKey), 0, 1, uint16(srid),
	}
}
