// CBD Importer - Bulk data loader for the CBD events platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cbd-importer

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/cbd-importer/internal/validation"
)

// minJWTSecretLength is the shortest HS256 secret accepted in jwt mode.
const minJWTSecretLength = 32

// Validate checks struct tags first, then cross-field rules.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}

	if err := c.validateStore(); err != nil {
		return err
	}

	if err := c.validateEvents(); err != nil {
		return err
	}

	return c.validateSecurity()
}

// validateStore requires the connection setting of the selected driver.
func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "mongo":
		if c.Store.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when store driver is mongo")
		}
		if !strings.HasPrefix(c.Store.MongoURI, "mongodb://") && !strings.HasPrefix(c.Store.MongoURI, "mongodb+srv://") {
			return fmt.Errorf("MONGO_URI must use the mongodb:// or mongodb+srv:// scheme")
		}
	case "badger":
		if c.Store.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required when store driver is badger")
		}
	}
	return nil
}

// validateEvents checks the NATS URL only when the fan-out is enabled.
func (c *Config) validateEvents() error {
	if !c.Events.NATSEnabled {
		return nil
	}
	if c.Events.NATSURL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED is true")
	}
	u, err := url.Parse(c.Events.NATSURL)
	if err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if u.Scheme != "nats" && u.Scheme != "tls" {
		return fmt.Errorf("NATS_URL must use the nats:// or tls:// scheme, got %q", u.Scheme)
	}
	if strings.ContainsAny(c.Events.SubjectPrefix, " *>") {
		return fmt.Errorf("NATS_SUBJECT_PREFIX must not contain spaces or wildcards")
	}
	return nil
}

// validateSecurity requires a strong secret in jwt mode.
func (c *Config) validateSecurity() error {
	if c.Security.AuthMode != "jwt" {
		return nil
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when AUTH_MODE is jwt")
	}
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	return nil
}
