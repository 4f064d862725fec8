// Package ingest reads weighted polygon datasets and hands them to a
// heatmap.Renderer.
//
// Datasets are GeoJSON FeatureCollections. Every Polygon feature and every
// part of a MultiPolygon feature becomes one polygon; only the exterior
// ring is used. Heat features carry their weight in a numeric property
// ("weight" by default). Outline features need no properties.
//
// A Loader builds the level-of-detail meshes off the dispatcher goroutine
// and posts the result as an heatmap.IncomingData message:
//
//	l := ingest.NewLoader(r)
//	if err := l.LoadFiles(ctx, "regions.geojson", "countries.geojson"); err != nil {
//	    log.Fatal(err)
//	}
package ingest
