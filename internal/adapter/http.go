// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/MKhiriev/go-sync-store/internal/config"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/query"
	"github.com/MKhiriev/go-sync-store/internal/utils"
	"github.com/MKhiriev/go-sync-store/models"
	"github.com/go-resty/resty/v2"
)

// Header names shared with the backend.
const (
	// HeaderRequestStart carries the server time at which the request was
	// accepted. It is used as the since marker of the next delta fetch.
	HeaderRequestStart = "X-Request-Start"
	// HeaderAppKey identifies the application.
	HeaderAppKey = "X-App-Key"
)

type httpTransport struct {
	client *utils.HTTPClient
	appKey string

	logger *logger.Logger
}

// NewHTTPTransport constructs an HTTP/REST implementation of [Transport].
// It normalises and validates the base URL from cfg.HTTPAddress and
// configures the underlying HTTP client with the resolved base URL, request
// timeout, app key and bearer token.
//
// Returns an error if cfg.HTTPAddress is empty or cannot be parsed as a
// valid URL.
func NewHTTPTransport(cfg config.Adapter, logger *logger.Logger) (Transport, error) {
	baseURL, err := normalizeBaseURL(cfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter http address: %w", err)
	}

	client := utils.NewHTTPClient(baseURL, cfg.RequestTimeout).
		WithBearer(strings.TrimSpace(cfg.AuthToken))
	if cfg.AppKey != "" {
		client.SetHeader(HeaderAppKey, cfg.AppKey)
	}
	client.OnAfterResponse(requestLogger(logger))

	return &httpTransport{client: client, appKey: cfg.AppKey, logger: logger}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

func collectionPath(collection string) string {
	return "/appdata/" + url.PathEscape(collection)
}

func entityPath(collection, id string) string {
	return collectionPath(collection) + "/" + url.PathEscape(id)
}

// CreateEntity implements [Transport]. It POSTs the entity to
// POST /appdata/{collection}. A temporary id is stripped so that the server
// assigns the permanent one.
func (h *httpTransport) CreateEntity(ctx context.Context, collection string, entity models.Entity) (models.Entity, error) {
	payload := entity.Clone()
	if models.IsTempID(payload.ID) {
		payload.ID = ""
	}

	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(collectionPath(collection))
	if err != nil {
		return models.Entity{}, mapTransportError("create entity request", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.Entity{}, err
	}

	var created models.Entity
	if err = json.Unmarshal(resp.Body(), &created); err != nil {
		return models.Entity{}, fmt.Errorf("decode created entity: %w", err)
	}
	if created.ID == "" {
		return models.Entity{}, fmt.Errorf("decode created entity: server returned no id")
	}

	return created, nil
}

// UpdateEntity implements [Transport]. It PUTs the entity to
// PUT /appdata/{collection}/{id}.
func (h *httpTransport) UpdateEntity(ctx context.Context, collection string, entity models.Entity) (models.Entity, error) {
	if entity.ID == "" {
		return models.Entity{}, fmt.Errorf("update entity: empty id")
	}

	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(entity).
		Put(entityPath(collection, entity.ID))
	if err != nil {
		return models.Entity{}, mapTransportError("update entity request", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.Entity{}, err
	}

	var updated models.Entity
	if err = json.Unmarshal(resp.Body(), &updated); err != nil {
		return models.Entity{}, fmt.Errorf("decode updated entity: %w", err)
	}
	if updated.ID == "" {
		updated.ID = entity.ID
	}

	return updated, nil
}

// DeleteEntity implements [Transport]. It sends
// DELETE /appdata/{collection}/{id}.
func (h *httpTransport) DeleteEntity(ctx context.Context, collection, id string) error {
	resp, err := h.client.R().
		SetContext(ctx).
		Delete(entityPath(collection, id))
	if err != nil {
		return mapTransportError("delete entity request", err)
	}
	return mapHTTPError(resp)
}

// FetchCollection implements [Transport]. It sends
// GET /appdata/{collection}?query=&sort=&skip=&limit= and reads the since
// marker from the X-Request-Start response header.
func (h *httpTransport) FetchCollection(ctx context.Context, collection string, q models.Query, skip, limit int) (models.FetchResult, error) {
	params, err := queryParams(q)
	if err != nil {
		return models.FetchResult{}, err
	}
	if skip > 0 {
		params.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(collectionPath(collection))
	if err != nil {
		return models.FetchResult{}, mapTransportError("fetch collection request", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.FetchResult{}, err
	}

	var entities []models.Entity
	if err = json.Unmarshal(resp.Body(), &entities); err != nil {
		return models.FetchResult{}, fmt.Errorf("decode collection: %w", err)
	}

	return models.FetchResult{
		Entities: entities,
		Since:    resp.Header().Get(HeaderRequestStart),
	}, nil
}

// deltaResponse is the body of GET /appdata/{collection}/_deltaset.
type deltaResponse struct {
	Changed []models.Entity `json:"changed"`
	Deleted []struct {
		ID string `json:"_id"`
	} `json:"deleted"`
}

// FetchDelta implements [Transport]. It sends
// GET /appdata/{collection}/_deltaset?since=&query=.
func (h *httpTransport) FetchDelta(ctx context.Context, collection string, q models.Query, since string) (models.DeltaResult, error) {
	params, err := queryParams(models.Query{Filter: q.Filter})
	if err != nil {
		return models.DeltaResult{}, err
	}
	params.Set("since", since)

	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		Get(collectionPath(collection) + "/_deltaset")
	if err != nil {
		return models.DeltaResult{}, mapTransportError("fetch delta request", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.DeltaResult{}, err
	}

	var body deltaResponse
	if err = json.Unmarshal(resp.Body(), &body); err != nil {
		return models.DeltaResult{}, fmt.Errorf("decode delta set: %w", err)
	}

	deleted := make([]string, 0, len(body.Deleted))
	for _, d := range body.Deleted {
		deleted = append(deleted, d.ID)
	}

	return models.DeltaResult{
		Changed: body.Changed,
		Deleted: deleted,
		Since:   resp.Header().Get(HeaderRequestStart),
	}, nil
}

// CountCollection implements [Transport]. It sends
// GET /appdata/{collection}/_count?query=.
func (h *httpTransport) CountCollection(ctx context.Context, collection string, q models.Query) (int, error) {
	params, err := queryParams(models.Query{Filter: q.Filter})
	if err != nil {
		return 0, err
	}

	var body struct {
		Count int `json:"count"`
	}

	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetResult(&body).
		Get(collectionPath(collection) + "/_count")
	if err != nil {
		return 0, mapTransportError("count collection request", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return 0, err
	}

	return body.Count, nil
}

// queryParams encodes the filter and sort of q. Paging is left to callers.
func queryParams(q models.Query) (url.Values, error) {
	params := url.Values{}
	if q.Filter != nil {
		filter, err := query.EncodeFilter(q.Filter)
		if err != nil {
			return nil, err
		}
		params.Set("query", filter)
	}
	if sort := query.EncodeSort(q.Sort); sort != "" {
		params.Set("sort", sort)
	}
	return params, nil
}

// requestLogger is a resty middleware that records each completed request
// at debug level.
func requestLogger(log *logger.Logger) resty.ResponseMiddleware {
	return func(_ *resty.Client, resp *resty.Response) error {
		log.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Dur("duration", resp.Time()).
			Msg("backend request completed")
		return nil
	}
}
