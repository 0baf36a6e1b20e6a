// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imroc/req"

	"github.com/Thermoquad/hilbridge/pkg/config"
	"github.com/Thermoquad/hilbridge/pkg/gateway"
)

// Client queries a running bridge's status API
type Client struct {
	ApiPrefix string
	r         *req.Req
}

// NewClient accepts host:port or a full http:// URL
func NewClient(address string) *Client {
	if address == "" {
		address = DefaultAddress
	}
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	return &Client{
		ApiPrefix: strings.TrimSuffix(address, "/") + "/api",
		r:         req.New(),
	}
}

func (c *Client) get(path string, v interface{}) error {
	r, err := c.r.Get(fmt.Sprintf("%s/%s", c.ApiPrefix, path))
	if err != nil {
		return err
	}
	if r.Response().StatusCode != 200 {
		return errors.New(r.Response().Status)
	}
	return r.ToJSON(v)
}

// Health checks that the bridge is running
func (c *Client) Health() (*Health, error) {
	h := &Health{}
	if err := c.get("health", h); err != nil {
		return nil, err
	}
	return h, nil
}

// Stats returns the bridge's counters
func (c *Client) Stats() (*gateway.Snapshot, error) {
	s := &gateway.Snapshot{}
	if err := c.get("stats", s); err != nil {
		return nil, err
	}
	return s, nil
}

// Layout returns the active offset layout
func (c *Client) Layout() (*config.LayoutConfig, error) {
	l := &config.LayoutConfig{}
	if err := c.get("layout", l); err != nil {
		return nil, err
	}
	return l, nil
}
