package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const googleVisionAPIURL = "https://vision.googleapis.com/v1/images:annotate"

// ErrAuth marks failures to obtain a bearer token so callers can report
// authentication separately from upstream errors.
var ErrAuth = errors.New("authentication failed")

// Annotation is one detection from the vision service, either a generic
// label or a localized object.
type Annotation struct {
	Description string
	Score       float64
	Type        string // "label" or "object"
}

// Annotator analyzes one base64-encoded image.
type Annotator interface {
	AnnotateImage(ctx context.Context, imageBase64 string) ([]Annotation, error)
}

type GoogleVisionClient struct {
	tokens     TokenSource
	apiURL     string
	httpClient *http.Client
}

func NewGoogleVisionClient(tokens TokenSource) *GoogleVisionClient {
	return &GoogleVisionClient{
		tokens: tokens,
		apiURL: googleVisionAPIURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type googleVisionRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image    imageContent  `json:"image"`
	Features []featureType `json:"features"`
}

type imageContent struct {
	Content string `json:"content"`
}

type featureType struct {
	Type       string `json:"type"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type googleVisionResponse struct {
	Responses []annotateResponse `json:"responses"`
	Error     *googleError       `json:"error"`
}

type googleError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type annotateResponse struct {
	LabelAnnotations           []labelAnnotation  `json:"labelAnnotations"`
	LocalizedObjectAnnotations []objectAnnotation `json:"localizedObjectAnnotations"`
	Error                      *googleError       `json:"error"`
}

type labelAnnotation struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

type objectAnnotation struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// AnnotateImage runs label detection and object localization over one
// image and merges both annotation collections.
func (c *GoogleVisionClient) AnnotateImage(ctx context.Context, imageBase64 string) ([]Annotation, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}

	reqBody := googleVisionRequest{
		Requests: []imageRequest{
			{
				Image: imageContent{Content: imageBase64},
				Features: []featureType{
					{Type: "LABEL_DETECTION", MaxResults: 10},
					{Type: "OBJECT_LOCALIZATION", MaxResults: 10},
				},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var visionResp googleVisionResponse
	if err := json.Unmarshal(body, &visionResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if visionResp.Error != nil {
		return nil, fmt.Errorf("Google Vision API error: %s", visionResp.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Google Vision API returned status %d", resp.StatusCode)
	}

	if len(visionResp.Responses) == 0 {
		return nil, fmt.Errorf("no response from Google Vision API")
	}

	response := visionResp.Responses[0]
	if response.Error != nil {
		return nil, fmt.Errorf("Google Vision API error: %s", response.Error.Message)
	}

	annotations := make([]Annotation, 0,
		len(response.LabelAnnotations)+len(response.LocalizedObjectAnnotations))

	for _, label := range response.LabelAnnotations {
		annotations = append(annotations, Annotation{
			Description: label.Description,
			Score:       label.Score,
			Type:        "label",
		})
	}

	for _, object := range response.LocalizedObjectAnnotations {
		annotations = append(annotations, Annotation{
			Description: object.Name,
			Score:       object.Score,
			Type:        "object",
		})
	}

	return annotations, nil
}
