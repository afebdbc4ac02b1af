package cli

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ChunkResponse — chunk из API.
type ChunkResponse struct {
	ID             int64  `json:"apdb_replica_chunk"`
	Status         string `json:"status"`
	Directory      string `json:"directory,omitempty"`
	UniqueID       string `json:"unique_id,omitempty"`
	LastUpdateTime string `json:"last_update_time,omitempty"`
	ExportedAt     string `json:"exported_at,omitempty"`
	StagedAt       string `json:"staged_at,omitempty"`
	PromotedAt     string `json:"promoted_at,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// PromoteResponse — ответ POST /promote_chunks.
type PromoteResponse struct {
	OK             bool    `json:"ok"`
	Mode           string  `json:"mode,omitempty"`
	Message        string  `json:"message,omitempty"`
	Error          string  `json:"error,omitempty"`
	ChunksPromoted int64   `json:"chunks_promoted"`
	ChunkIDs       []int64 `json:"chunk_ids,omitempty"`
}

// PushResponse — ответ push-эндпоинта.
type PushResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ListChunksOpts — параметры фильтрации chunks.
type ListChunksOpts struct {
	Status string
	Limit  int
	Offset int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// pushEnvelope — push-конверт Pub/Sub.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
}

// --- Client ---

// Client — HTTP-клиент для API сервисов конвейера.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. token — Bearer-токен (может быть пустым).
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// --- Chunks ---

// ListChunks возвращает chunks с фильтрацией.
func (c *Client) ListChunks(opts ListChunksOpts) ([]ChunkResponse, error) {
	params := url.Values{}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	var chunks []ChunkResponse
	err := c.list("/api/v1/chunks", params, &chunks)
	return chunks, err
}

// GetChunk возвращает chunk по ID.
func (c *Client) GetChunk(id string) (*ChunkResponse, error) {
	var chunk ChunkResponse
	err := c.get("/api/v1/chunks/"+url.PathEscape(id), &chunk)
	return &chunk, err
}

// --- Pipeline ---

// Promote запускает промоушен.
func (c *Client) Promote(dryRun bool) (*PromoteResponse, error) {
	path := "/promote_chunks"
	if dryRun {
		path += "?dry_run=true"
	}

	resp, err := c.do(http.MethodPost, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var pr PromoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		if cerr := c.checkError(resp); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !pr.OK {
		return &pr, fmt.Errorf("promotion failed: %s", pr.Error)
	}
	return &pr, nil
}

// Push отправляет payload в push-эндпоинт (/stage_chunk, /track_chunk)
// в конверте Pub/Sub.
func (c *Client) Push(path string, payload any) (*PushResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var env pushEnvelope
	env.Message.Data = base64.StdEncoding.EncodeToString(data)
	env.Message.MessageID = strconv.FormatInt(time.Now().UnixNano(), 10)

	resp, err := c.do(http.MethodPost, path, env)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var pr PushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}
	if !pr.OK {
		return &pr, fmt.Errorf("message rejected (HTTP %d): %s", resp.StatusCode, pr.Error)
	}
	return &pr, nil
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return json.Unmarshal(dr.Data, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
