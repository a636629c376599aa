package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // Import the mysql driver
	_ "github.com/lib/pq"              // Import the postgres driver

	"github.com/populationgenomics/metamist-sub002/config"
	"github.com/populationgenomics/metamist-sub002/internal/cache"
	"github.com/populationgenomics/metamist-sub002/internal/filter"
	"github.com/populationgenomics/metamist-sub002/model"
)

// Declare a package-level variable to hold the singleton instance.
var instance *Datasource
var once sync.Once

// Datasource is the relational store holding budgets and cost category classifications.
type Datasource struct {
	Conn   *sql.DB
	Flavor filter.Flavor
	Cache  cache.Cache

	categories *cache.Lookup[map[string]model.CostGroup]
}

// New wraps an open connection. c may be nil, in which case classifications are read uncached.
func New(conn *sql.DB, flavor filter.Flavor, c cache.Cache, ttl time.Duration) *Datasource {
	ds := &Datasource{Conn: conn, Flavor: flavor, Cache: c}
	if c != nil {
		ds.categories = cache.NewLookup(c, "billing:", ttl, func(ctx context.Context, _ string) (map[string]model.CostGroup, error) {
			return ds.loadCostCategoryGroups(ctx)
		})
	}
	return ds
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		flavor := filter.Flavor(configuration.DataSource.Driver)
		if flavor == "" {
			flavor = filter.Postgres
		}
		con, errConn := ConnectDB(flavor, configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}

		cacheInstance, errCache := cache.NewCache()
		if errCache != nil {
			log.Printf("Error creating cache: %v", errCache)
			// Continue without cache instead of failing completely.
			instance = New(con, flavor, nil, 0)
			return
		}
		instance = New(con, flavor, cacheInstance, configuration.Cache.TTL())
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// ConnectDB establishes a database connection with pooling.
func ConnectDB(flavor filter.Flavor, dsn string) (*sql.DB, error) {
	switch flavor {
	case filter.Postgres, filter.MySQL:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", flavor)
	}

	db, err := sql.Open(string(flavor), dsn)
	if err != nil {
		return nil, err
	}

	// Apply connection pooling settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	err = db.Ping()
	if err != nil {
		log.Printf("Database connection error: %v", err)
		return nil, err
	}

	log.Println("Database connection established")
	return db, nil
}

// rebind turns a compiled :name query into the driver's placeholder form.
func (d *Datasource) rebind(query string, bindings []filter.Binding) (string, []interface{}, error) {
	return filter.Rebind(d.Flavor, query, bindings)
}

func (d *Datasource) compiler() *filter.Compiler {
	return filter.NewCompiler(filter.Relational{Flavor: d.Flavor})
}
