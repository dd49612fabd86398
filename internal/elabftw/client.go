package elabftw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elnmigrate/labfolder2elabftw/internal/logger"
	"github.com/elnmigrate/labfolder2elabftw/internal/models"
)

// Client talks to the eLabFTW v2 API
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates an eLabFTW API client. baseURL points at the API root,
// e.g. https://elab.example.org/api/v2.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

var _ API = (*Client)(nil)

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(endpoint, "/"), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s failed (%d): %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return resp, nil
}

// CreateExperiment creates an empty experiment. The assigned ID comes from
// the response body when present, otherwise from the Location header.
func (c *Client) CreateExperiment(ctx context.Context, title string, tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	resp, err := c.doJSON(ctx, http.MethodPost, "experiments", map[string]interface{}{
		"title": title,
		"tags":  tags,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var created struct {
		ID json.Number `json:"id"`
	}
	id := ""
	if err := json.NewDecoder(resp.Body).Decode(&created); err == nil {
		id = created.ID.String()
	}
	if id == "" {
		id = idFromLocation(resp.Header.Get("Location"))
	}
	if !isDigits(id) {
		return "", fmt.Errorf("could not parse experiment ID from create response: %q", id)
	}

	logger.Debug("Created experiment", map[string]interface{}{
		"experiment_id": id,
		"title":         title,
	})

	return id, nil
}

// FindExperimentByProjectID searches existing experiments for one whose
// "Labfolder Project ID" extra field matches the given project ID.
func (c *Client) FindExperimentByProjectID(ctx context.Context, projectID string) (string, error) {
	endpoint := "experiments?" + url.Values{"q": {projectID}, "limit": {"50"}}.Encode()
	resp, err := c.doJSON(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var results []struct {
		ID       json.Number `json:"id"`
		Metadata string      `json:"metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", fmt.Errorf("failed to decode experiment search response: %w", err)
	}

	for _, exp := range results {
		if extractProjectID(exp.Metadata) == projectID {
			return exp.ID.String(), nil
		}
	}
	return "", nil
}

// PatchBody replaces the experiment body and category
func (c *Client) PatchBody(ctx context.Context, experimentID, body string, category int) error {
	if !isDigits(experimentID) {
		return fmt.Errorf("invalid experiment ID: %q", experimentID)
	}
	payload := map[string]interface{}{"body": body}
	if category > 0 {
		payload["category"] = category
	}
	resp, err := c.doJSON(ctx, http.MethodPatch, "experiments/"+experimentID, payload)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// PatchMetadata merges the extra fields into the experiment metadata and sets
// the owning user. The current elabftw metadata section is preserved.
func (c *Client) PatchMetadata(ctx context.Context, experimentID string, userID int, extra map[string]ExtraField) error {
	if !isDigits(experimentID) {
		return fmt.Errorf("invalid experiment ID: %q", experimentID)
	}

	elabMeta, err := c.currentElabMeta(ctx, experimentID)
	if err != nil {
		return err
	}

	meta := map[string]interface{}{"elabftw": elabMeta}
	if len(extra) > 0 {
		meta["extra_fields"] = extra
		elabMeta["extra_fields_groups"] = mergeGroupIDs(elabMeta["extra_fields_groups"])
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{"metadata": string(metaJSON)}
	if userID > 0 {
		payload["userid"] = userID
	}
	resp, err := c.doJSON(ctx, http.MethodPatch, "experiments/"+experimentID, payload)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Upload posts the attachment as multipart form data and resolves the
// assigned upload's long name, which download links in the body point at.
func (c *Client) Upload(ctx context.Context, experimentID string, attachment models.Attachment) (string, error) {
	if !isDigits(experimentID) {
		return "", fmt.Errorf("invalid experiment ID for upload: %q", experimentID)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", attachment.Filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(attachment.Data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "experiments/"+experimentID+"/uploads", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload of %s failed (%d): %s", attachment.Filename, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	uploadID := idFromLocation(resp.Header.Get("Location"))
	if !isDigits(uploadID) {
		return "", fmt.Errorf("could not parse upload ID for %s: %q", attachment.Filename, uploadID)
	}

	return c.uploadLongName(ctx, experimentID, uploadID)
}

// LinkResource links a resource item (e.g. an ISA study) to the experiment
func (c *Client) LinkResource(ctx context.Context, experimentID, resourceID string) error {
	if !isDigits(experimentID) {
		return fmt.Errorf("invalid experiment ID for linking: %q", experimentID)
	}
	if !isDigits(resourceID) {
		return fmt.Errorf("invalid resource ID for linking: %q", resourceID)
	}
	resp, err := c.doJSON(ctx, http.MethodPost, "experiments/"+experimentID+"/items_links/"+resourceID,
		map[string]string{"action": "create"})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) uploadLongName(ctx context.Context, experimentID, uploadID string) (string, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, "experiments/"+experimentID+"/uploads/"+uploadID, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var upload struct {
		LongName string `json:"long_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&upload); err != nil {
		return "", fmt.Errorf("failed to decode upload %s: %w", uploadID, err)
	}
	if upload.LongName == "" {
		return "", fmt.Errorf("upload %s has no long_name", uploadID)
	}
	return upload.LongName, nil
}

// currentElabMeta fetches the experiment's existing metadata and returns its
// elabftw section, defaulting to a visible main text.
func (c *Client) currentElabMeta(ctx context.Context, experimentID string) (map[string]interface{}, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, "experiments/"+experimentID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var current struct {
		Metadata string `json:"metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&current); err != nil {
		return nil, fmt.Errorf("failed to decode experiment %s: %w", experimentID, err)
	}

	elabMeta := map[string]interface{}{
		"display_main_text":   true,
		"extra_fields_groups": []interface{}{},
	}
	if current.Metadata != "" {
		var meta map[string]interface{}
		if err := json.Unmarshal([]byte(current.Metadata), &meta); err == nil {
			if section, ok := meta["elabftw"].(map[string]interface{}); ok {
				elabMeta = section
			}
		}
	}
	return elabMeta, nil
}

// extractProjectID pulls the "Labfolder Project ID" extra field out of a raw
// metadata JSON string.
func extractProjectID(metadata string) string {
	if metadata == "" {
		return ""
	}
	var meta struct {
		ExtraFields map[string]struct {
			Value string `json:"value"`
		} `json:"extra_fields"`
	}
	if err := json.Unmarshal([]byte(metadata), &meta); err != nil {
		return ""
	}
	return meta.ExtraFields["Labfolder Project ID"].Value
}

// mergeGroupIDs adds group 0 to whatever groups the metadata already lists
func mergeGroupIDs(existing interface{}) []interface{} {
	groups := []interface{}{}
	seen := map[string]bool{}
	if list, ok := existing.([]interface{}); ok {
		for _, g := range list {
			key := fmt.Sprint(g)
			if !seen[key] {
				seen[key] = true
				groups = append(groups, g)
			}
		}
	}
	if !seen["0"] {
		groups = append(groups, 0)
	}
	return groups
}

func idFromLocation(location string) string {
	location = strings.TrimRight(location, "/")
	if i := strings.LastIndex(location, "/"); i >= 0 {
		return location[i+1:]
	}
	return location
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
