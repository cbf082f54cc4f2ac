package wms

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// Namespace is the XML namespace of WMS 1.3.0 capabilities documents.
const Namespace = "http://www.opengis.net/wms"

// CRS is the coordinate reference system used for every map request.
const CRS = "EPSG:4326"

// BBox is a bounding box as advertised by the server. The coordinates are
// kept as the server wrote them so requests echo them unchanged.
type BBox struct {
	MinX string
	MinY string
	MaxX string
	MaxY string
}

// Layer is a named layer from a capabilities document.
type Layer struct {
	Name string
	BBox BBox
}

type capabilitiesDoc struct {
	Capability *struct {
		Layer *struct {
			Layers []capabilitiesLayer `xml:"http://www.opengis.net/wms Layer"`
		} `xml:"http://www.opengis.net/wms Layer"`
	} `xml:"http://www.opengis.net/wms Capability"`
	Exceptions []string `xml:"ServiceException"`
}

type capabilitiesLayer struct {
	Name   *string            `xml:"http://www.opengis.net/wms Name"`
	BBoxes []capabilitiesBBox `xml:"http://www.opengis.net/wms BoundingBox"`
}

type capabilitiesBBox struct {
	CRS  string `xml:"CRS,attr"`
	MinX string `xml:"minx,attr"`
	MinY string `xml:"miny,attr"`
	MaxX string `xml:"maxx,attr"`
	MaxY string `xml:"maxy,attr"`
}

// ParseLayers extracts the named layers directly below the root layer of a
// WMS 1.3.0 capabilities document, with their EPSG:4326 bounding box. Named
// layers without such a bounding box are returned in skipped.
func ParseLayers(doc []byte) (layers []Layer, skipped []string, err error) {
	if len(strings.TrimSpace(string(doc))) == 0 {
		return nil, nil, errors.New("empty capabilities document")
	}

	var caps capabilitiesDoc
	if err := xml.Unmarshal(doc, &caps); err != nil {
		return nil, nil, fmt.Errorf("parsing capabilities: %w", err)
	}
	if len(caps.Exceptions) > 0 {
		return nil, nil, fmt.Errorf("service exception: %s", strings.TrimSpace(strings.Join(caps.Exceptions, "; ")))
	}
	if caps.Capability == nil || caps.Capability.Layer == nil {
		return nil, nil, errors.New("capabilities document has no Capability/Layer element")
	}

	layers = []Layer{}
	for _, l := range caps.Capability.Layer.Layers {
		if l.Name == nil {
			continue
		}
		name := strings.TrimSpace(*l.Name)
		bbox, ok := findBBox(l.BBoxes, CRS)
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		layers = append(layers, Layer{Name: name, BBox: bbox})
	}
	return layers, skipped, nil
}

func findBBox(boxes []capabilitiesBBox, crs string) (BBox, bool) {
	for _, b := range boxes {
		if b.CRS == crs {
			return BBox{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}, true
		}
	}
	return BBox{}, false
}
