package docpipe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/structura/connectivity"
	"github.com/hazyhaar/structura/horosafe"
)

// RegisterConnectivity registers docpipe services on a connectivity Router.
//
//	docpipe_extract   {"path"} -> Document
//	docpipe_validate  {"path"} -> Validation
func (p *Pipeline) RegisterConnectivity(router *connectivity.Router) {
	router.RegisterLocal("docpipe_extract", p.handleExtract)
	router.RegisterLocal("docpipe_validate", p.handleValidate)
}

type pathReq struct {
	Path string `json:"path"`
}

// resolve maps a caller supplied path under Config.Root.
func (p *Pipeline) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if p.cfg.Root == "" {
		return path, nil
	}
	return horosafe.SafePath(p.cfg.Root, path)
}

func (p *Pipeline) handleExtract(ctx context.Context, payload []byte) ([]byte, error) {
	var req pathReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	path, err := p.resolve(req.Path)
	if err != nil {
		return nil, err
	}
	doc, err := p.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func (p *Pipeline) handleValidate(_ context.Context, payload []byte) ([]byte, error) {
	var req pathReq
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	path, err := p.resolve(req.Path)
	if err != nil {
		return nil, err
	}
	return json.Marshal(p.Validate(path))
}
