package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/crashchain/crashchain/internal/config"
	"github.com/crashchain/crashchain/internal/pinning/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// Client talks to the Pinata HTTP API. All calls share one http.Client with
// a bounded timeout.
type Client struct {
	apiBase string
	gateway string
	jwt     string
	http    *http.Client
	log     *zap.Logger
}

func New(p Params) domain.Client {
	timeout := p.Cfg.PinningTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiBase: strings.TrimRight(p.Cfg.PinataAPIBase, "/"),
		gateway: p.Cfg.PinataGateway,
		jwt:     p.Cfg.PinataJWT,
		http:    &http.Client{Timeout: timeout},
		log:     p.Log.Named("pinning.pinata"),
	}
}

func (c *Client) CreateGroup(ctx context.Context, name string) (domain.Group, error) {
	var resp struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.postJSON(ctx, "/groups", map[string]string{"name": name}, &resp); err != nil {
		return domain.Group{}, err
	}
	return domain.Group{ID: resp.ID, Name: resp.Name}, nil
}

func (c *Client) PinFile(ctx context.Context, name string, content io.Reader) (string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/pinning/pinFileToIPFS", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		IpfsHash string `json:"IpfsHash"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.IpfsHash == "" {
		return "", fmt.Errorf("%w: pin response missing IpfsHash", domain.ErrUnavailable)
	}
	return resp.IpfsHash, nil
}

func (c *Client) AddCIDs(ctx context.Context, groupID string, cids []string) error {
	return c.postJSON(ctx, "/groups/"+groupID+"/cids", map[string][]string{"cids": cids}, nil)
}

func (c *Client) ListGroups(ctx context.Context) ([]domain.Group, error) {
	var groups []domain.Group
	if err := c.getJSON(ctx, "/groups", &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) GetGroup(ctx context.Context, groupID string) (domain.GroupDetail, error) {
	var resp struct {
		Data domain.GroupDetail `json:"data"`
	}
	if err := c.getJSON(ctx, "/groups/"+groupID, &resp); err != nil {
		return domain.GroupDetail{}, err
	}
	if resp.Data.ID == "" {
		resp.Data.ID = groupID
	}
	return resp.Data, nil
}

func (c *Client) ListGroupFiles(ctx context.Context, groupID string) ([]domain.Artifact, error) {
	var resp struct {
		Rows []struct {
			IpfsPinHash string `json:"ipfs_pin_hash"`
			MimeType    string `json:"mime_type"`
			Size        int64  `json:"size"`
			Metadata    struct {
				Name string `json:"name"`
			} `json:"metadata"`
		} `json:"rows"`
	}
	if err := c.getJSON(ctx, "/data/pinList?status=pinned&groupId="+groupID, &resp); err != nil {
		return nil, err
	}

	artifacts := make([]domain.Artifact, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		name := row.Metadata.Name
		if name == "" {
			name = "Unknown"
		}
		artifacts = append(artifacts, domain.Artifact{
			CID:      row.IpfsPinHash,
			Name:     name,
			MimeType: row.MimeType,
			Size:     row.Size,
		})
	}
	return artifacts, nil
}

func (c *Client) FetchContent(ctx context.Context, cid string) (domain.Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GatewayURL(cid), nil)
	if err != nil {
		return domain.Content{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Content{}, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Content{}, fmt.Errorf("%w: gateway returned %d for %s", domain.ErrUnavailable, resp.StatusCode, cid)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Content{}, err
	}
	return domain.Content{
		CID:         cid,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (c *Client) GatewayURL(cid string) string {
	gateway := c.gateway
	if !strings.Contains(gateway, "://") {
		gateway = "https://" + gateway
	}
	return strings.TrimRight(gateway, "/") + "/ipfs/" + cid
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.jwt)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("pinata call failed",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return fmt.Errorf("%w: %s returned %d", domain.ErrUnavailable, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
