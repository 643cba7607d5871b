package photo

import (
	"context"
	"image"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"go.viam.com/aligner/logging"
)

// HTTPSource fetches a photograph from a remote camera with a GET request.
type HTTPSource struct {
	URL    string
	Client *http.Client
	Logger logging.Logger
}

// Capture implements Source.
func (hs *HTTPSource) Capture(ctx context.Context) (image.Image, error) {
	if hs.Logger != nil {
		hs.Logger.Infof("fetching camera photo from %s", hs.URL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hs.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "invalid camera URL")
	}
	client := hs.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to request from remote camera URL")
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("remote camera %s returned %s", hs.URL, resp.Status)
	}
	img, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "response didn't contain image data")
	}
	return img, nil
}
