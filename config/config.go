/*
Copyright 2024 The Metamist Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_DRIVER         = "postgres"
	DEFAULT_PRICE_PER_TIB  = 6.25
	DEFAULT_CACHE_SIZE     = 1000
	DEFAULT_CACHE_TTL_SECS = 300
)

var ConfigStore atomic.Value

type DataSourceConfig struct {
	Dns    string `json:"dns" envconfig:"METAMIST_DATA_SOURCE_DNS"`
	Driver string `json:"driver" envconfig:"METAMIST_DATA_SOURCE_DRIVER"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"METAMIST_REDIS_DNS"`
}

type BigQueryConfig struct {
	ProjectID      string  `json:"project_id" envconfig:"METAMIST_BIGQUERY_PROJECT_ID"`
	Location       string  `json:"location" envconfig:"METAMIST_BIGQUERY_LOCATION"`
	DryRun         bool    `json:"dry_run" envconfig:"METAMIST_BIGQUERY_DRY_RUN"`
	PricePerTiB    float64 `json:"price_per_tib" envconfig:"METAMIST_BIGQUERY_PRICE_PER_TIB"`
	MaxBytesBilled int64   `json:"max_bytes_billed" envconfig:"METAMIST_BIGQUERY_MAX_BYTES_BILLED"`
}

// BillingTables names the warehouse tables each billing source reads.
type BillingTables struct {
	Aggregate  string `json:"aggregate" envconfig:"METAMIST_BILLING_AGGREGATE_TABLE"`
	Extended   string `json:"extended" envconfig:"METAMIST_BILLING_EXTENDED_TABLE"`
	GcpBilling string `json:"gcp_billing" envconfig:"METAMIST_BILLING_GCP_BILLING_TABLE"`
	Raw        string `json:"raw" envconfig:"METAMIST_BILLING_RAW_TABLE"`
}

type CacheConfig struct {
	Size       int `json:"size" envconfig:"METAMIST_CACHE_SIZE"`
	TTLSeconds int `json:"ttl_seconds" envconfig:"METAMIST_CACHE_TTL_SECONDS"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type Configuration struct {
	ProjectName string           `json:"project_name" envconfig:"METAMIST_PROJECT_NAME"`
	LogLevel    string           `json:"log_level" envconfig:"METAMIST_LOG_LEVEL"`
	DataSource  DataSourceConfig `json:"data_source"`
	Redis       RedisConfig      `json:"redis"`
	BigQuery    BigQueryConfig   `json:"bigquery"`
	Billing     BillingTables    `json:"billing"`
	Cache       CacheConfig      `json:"cache"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("metamist", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called metamist.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Metamist Billing"
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.DataSource.Driver = strings.ToLower(strings.TrimSpace(cnf.DataSource.Driver))
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.BigQuery.ProjectID = strings.TrimSpace(cnf.BigQuery.ProjectID)

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.BigQuery.ProjectID == "" {
		log.Println("Error: BigQuery project id is empty. It's a required field.")
		return errors.New("bigquery project id is required")
	}

	switch cnf.DataSource.Driver {
	case "":
		cnf.DataSource.Driver = DEFAULT_DRIVER
	case "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported data source driver %q", cnf.DataSource.Driver)
	}

	if cnf.Redis.Dns == "" {
		log.Println("Warning: Redis DNS is empty. Lookups will only be cached in process.")
	}

	if cnf.LogLevel == "" {
		cnf.LogLevel = logrus.InfoLevel.String()
	}
	if _, err := logrus.ParseLevel(cnf.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", cnf.LogLevel)
	}

	if cnf.BigQuery.PricePerTiB <= 0 {
		cnf.BigQuery.PricePerTiB = DEFAULT_PRICE_PER_TIB
	}

	project := cnf.BigQuery.ProjectID
	if cnf.Billing.Aggregate == "" {
		cnf.Billing.Aggregate = project + ".billing_aggregate.aggregate"
	}
	if cnf.Billing.Extended == "" {
		cnf.Billing.Extended = project + ".billing_aggregate.aggregate_extended"
	}
	if cnf.Billing.GcpBilling == "" {
		cnf.Billing.GcpBilling = project + ".billing.gcp_billing"
	}
	if cnf.Billing.Raw == "" {
		cnf.Billing.Raw = project + ".billing.gcp_billing_export_raw"
	}

	if cnf.Cache.Size <= 0 {
		cnf.Cache.Size = DEFAULT_CACHE_SIZE
		log.Printf("Warning: Cache size not specified. Setting default value: %d", DEFAULT_CACHE_SIZE)
	}
	if cnf.Cache.TTLSeconds <= 0 {
		cnf.Cache.TTLSeconds = DEFAULT_CACHE_TTL_SECS
		log.Printf("Warning: Cache TTL not specified. Setting default value: %d seconds", DEFAULT_CACHE_TTL_SECS)
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
