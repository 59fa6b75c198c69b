package config

import (
	"github.com/ebaz7/lepan-crm-sub000/internal/container"
	"github.com/ebaz7/lepan-crm-sub000/internal/infrastructure/fiscal"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	companies := make([]fiscal.CompanyConfig, 0, len(c.Companies))
	for _, cc := range c.Companies {
		years := make([]fiscal.YearConfig, 0, len(cc.FiscalYears))
		for _, fy := range cc.FiscalYears {
			years = append(years, fiscal.YearConfig{
				ID:             fy.ID,
				Active:         fy.Active,
				Closed:         fy.Closed,
				StartOverrides: fy.StartOverrides,
			})
		}
		companies = append(companies, fiscal.CompanyConfig{
			ID:          cc.ID,
			Name:        cc.Name,
			FiscalYears: years,
		})
	}

	actors := make(map[string]string, len(c.Actors))
	for _, a := range c.Actors {
		actors[a.ID] = a.Role
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			DSN:             c.Database.DSN,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
			AutoMigrate:     c.Database.AutoMigrate,
		},
		Server: container.ServerConfig{
			Host:           c.Server.Host,
			Port:           c.Server.Port,
			ReadTimeout:    c.Server.ReadTimeout,
			WriteTimeout:   c.Server.WriteTimeout,
			AllowedOrigins: c.CORS.AllowedOrigins,
		},
		Auth: container.AuthConfig{
			Enabled:   c.Auth.Enabled,
			JWTSecret: c.Auth.JWTSecret,
			Issuer:    c.Auth.Issuer,
		},
		Workflow: container.WorkflowConfig{
			AdminRole: c.Workflow.AdminRole,
		},
		Sequence: container.SequenceConfig{
			MaxAttempts:  c.Sequence.MaxAttempts,
			RetryBackoff: c.Sequence.RetryBackoff,
		},
		Companies: companies,
		Actors:    actors,
		Lark: container.LarkConfig{
			Enabled:       c.Lark.Enabled,
			AppID:         c.Lark.AppID,
			AppSecret:     c.Lark.AppSecret,
			ReceiveID:     c.Lark.ReceiveID,
			ReceiveIDType: c.Lark.ReceiveIDType,
			BaseURL:       c.Lark.BaseURL,
		},
		NATS: container.NATSConfig{
			Enabled:       c.NATS.Enabled,
			URL:           c.NATS.URL,
			SubjectPrefix: c.NATS.SubjectPrefix,
		},
		Metrics: container.MetricsConfig{
			Enabled: c.Metrics.Enabled,
			Path:    c.Metrics.Path,
		},
	}
}
