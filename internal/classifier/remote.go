package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const jpegQuality = 80

// RemoteClassifier serializes a frame to a compressed JPEG and sends it
// to the backend proxy, which forwards it to the cloud vision service.
type RemoteClassifier struct {
	baseURL    string
	httpClient *http.Client
}

func NewRemoteClassifier(baseURL string) *RemoteClassifier {
	return &RemoteClassifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type visionRequest struct {
	Image string `json:"image"`
}

type visionResponse struct {
	Labels []visionLabel `json:"labels"`
	Error  string        `json:"error"`
}

type visionLabel struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Type        string  `json:"type"`
}

func (c *RemoteClassifier) Classify(ctx context.Context, frame image.Image) ([]RankedLabel, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, &RemoteError{Message: fmt.Sprintf("encoding frame: %v", err)}
	}

	reqBody, err := json.Marshal(visionRequest{
		Image: base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	if err != nil {
		return nil, &RemoteError{Message: fmt.Sprintf("marshaling request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/vision-ai", bytes.NewReader(reqBody))
	if err != nil {
		return nil, &RemoteError{Message: fmt.Sprintf("creating request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Message: fmt.Sprintf("executing request: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Message: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		var visionResp visionResponse
		if json.Unmarshal(body, &visionResp) == nil && visionResp.Error != "" {
			if resp.StatusCode == http.StatusUnauthorized ||
				strings.Contains(strings.ToLower(visionResp.Error), "authentication") {
				return nil, &AuthError{Message: visionResp.Error}
			}
			return nil, &RemoteError{Message: visionResp.Error}
		}
		return nil, &RemoteError{Message: fmt.Sprintf("proxy returned status %d", resp.StatusCode)}
	}

	var visionResp visionResponse
	if err := json.Unmarshal(body, &visionResp); err != nil {
		return nil, &RemoteError{Message: fmt.Sprintf("unmarshaling response: %v", err)}
	}

	if len(visionResp.Labels) == 0 {
		return nil, &EmptyResultError{}
	}

	labels := make([]RankedLabel, 0, len(visionResp.Labels))
	for _, l := range visionResp.Labels {
		kind := KindLabel
		if l.Type == string(KindObject) {
			kind = KindObject
		}
		labels = append(labels, RankedLabel{
			Description: l.Description,
			Score:       l.Score,
			Kind:        kind,
		})
	}

	sort.SliceStable(labels, func(i, j int) bool {
		return labels[i].Score > labels[j].Score
	})

	if len(labels) > MaxResults {
		labels = labels[:MaxResults]
	}

	return labels, nil
}
