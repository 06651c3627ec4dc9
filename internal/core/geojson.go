package core

import "context"

// FeatureCollection is a GeoJSON FeatureCollection of site points.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one site on the map.
type Feature struct {
	Type       string            `json:"type"`
	Geometry   Point             `json:"geometry"`
	Properties SiteMapProperties `json:"properties"`
}

// Point is a GeoJSON point. Coordinates are [longitude, latitude].
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// SiteMapProperties is what the map popup shows for a site.
type SiteMapProperties struct {
	ID          int64  `json:"id"`
	SiteID      string `json:"siteId"`
	City        string `json:"city"`
	District    string `json:"district"`
	Region5     string `json:"region5"`
	Status      Status `json:"status"`
	DeviceCount int64  `json:"deviceCount"`
}

// SiteMap returns every site matching f as GeoJSON, with its device count.
func (s *Service) SiteMap(ctx context.Context, f SiteFilter) (*FeatureCollection, error) {
	fc := &FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}

	counts, err := s.store.CountDevicesBy(ctx, "siteId")
	if err != nil {
		return nil, err
	}

	err = s.eachSite(ctx, f, func(site *Site) error {
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Point{
				Type:        "Point",
				Coordinates: [2]float64{site.Longitude, site.Latitude},
			},
			Properties: SiteMapProperties{
				ID:          site.ID,
				SiteID:      site.SiteID,
				City:        site.City,
				District:    site.District,
				Region5:     site.Region5,
				Status:      site.Status,
				DeviceCount: counts[site.SiteID],
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fc, nil
}
