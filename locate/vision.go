package locate

import (
	"context"
	"errors"
	"fmt"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"

	"photoGeotagger/geo"
)

// VisionDetector detects landmarks with the Google Cloud Vision API.
// Credentials come from the environment (GOOGLE_APPLICATION_CREDENTIALS).
type VisionDetector struct {
	client     *vision.ImageAnnotatorClient
	maxResults int32
}

func NewVisionDetector(ctx context.Context, maxResults int) (*VisionDetector, error) {
	client, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &VisionDetector{client: client, maxResults: int32(maxResults)}, nil
}

func (v *VisionDetector) DetectLandmarks(ctx context.Context, content []byte) ([]Landmark, error) {
	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: content},
			Features: []*visionpb.Feature{{
				Type:       visionpb.Feature_LANDMARK_DETECTION,
				MaxResults: v.maxResults,
			}},
		}},
	})
	if err != nil {
		return nil, err
	}
	responses := resp.GetResponses()
	if len(responses) == 0 {
		return nil, nil
	}
	if st := responses[0].GetError(); st != nil && st.GetCode() != 0 {
		return nil, errors.New(st.GetMessage())
	}

	var out []Landmark
	for _, a := range responses[0].GetLandmarkAnnotations() {
		lm := Landmark{Description: a.GetDescription()}
		for _, loc := range a.GetLocations() {
			ll := loc.GetLatLng()
			if ll == nil {
				continue
			}
			lm.Locations = append(lm.Locations, geo.Coordinate{Lat: ll.GetLatitude(), Lon: ll.GetLongitude()})
		}
		out = append(out, lm)
	}
	return out, nil
}

func (v *VisionDetector) Close() error {
	return v.client.Close()
}
