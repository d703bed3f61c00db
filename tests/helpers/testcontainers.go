// This file is a helper for running tests with testcontainers.
// It is used by the integration tests and by cmd/testcontainers as a standalone executable.
// Expects environment variables to be loaded from .env files, with defaults for local runs.
//

package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/localnerve/nodues/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	MinIOUser     = "nodues"
	MinIOPassword = "nodues-secret"
)

type TestContainers struct {
	Network             *testcontainers.DockerNetwork
	DB                  *Database
	RedisContainer      testcontainers.Container
	NATSContainer       testcontainers.Container
	MinIOContainer      testcontainers.Container
	AuthorizerContainer testcontainers.Container

	// Env holds host reachable settings for a locally run server or worker.
	Env map[string]string
}

// Database is a started database container and the credentials of both pools.
type Database struct {
	Container   testcontainers.Container
	Type        string
	Host        string
	Port        string
	Name        string
	AppUser     string
	AppPassword string
	User        string
	Password    string
}

// Config returns a service configuration pointed at the container.
func (d *Database) Config() *config.Config {
	return &config.Config{
		Environment:          "test",
		DBType:               d.Type,
		DBHost:               d.Host,
		DBPort:               d.Port,
		DBDatabase:           d.Name,
		DBAppUser:            d.AppUser,
		DBAppPassword:        d.AppPassword,
		DBAppConnectionLimit: 10,
		DBUser:               d.User,
		DBPassword:           d.Password,
		DBConnectionLimit:    5,
		AuthMode:             "header",
		Departments:          "library,accounts,hostel",
		CertQueue:            "certificates",
		CertBucket:           "nodues-certificates",
		CertURLTTL:           time.Minute,
		S3Region:             "us-east-1",
	}
}

func (d *Database) Terminate(t *testing.T) {
	if d == nil || d.Container == nil {
		return
	}
	if err := d.Container.Terminate(context.Background()); err != nil {
		logMessage(t, "Failed to terminate %s: %v", d.Type, err)
	}
}

func (tc *TestContainers) Terminate(t *testing.T) {
	ctx := context.Background()
	for name, c := range map[string]testcontainers.Container{
		"Authorizer": tc.AuthorizerContainer,
		"MinIO":      tc.MinIOContainer,
		"NATS":       tc.NATSContainer,
		"Redis":      tc.RedisContainer,
	} {
		if c == nil {
			continue
		}
		if err := c.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate %s: %v", name, err)
		}
	}
	tc.DB.Terminate(t)
	if tc.Network != nil {
		if err := tc.Network.Remove(ctx); err != nil {
			logMessage(t, "Failed to remove network: %v", err)
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// StartDatabase starts a postgres or mariadb container, creates the reporting
// user and returns the connection settings. networkName may be empty.
func StartDatabase(ctx context.Context, t *testing.T, dbType, networkName string) (*Database, error) {
	d := &Database{
		Type:        dbType,
		Name:        getEnv("DB_DATABASE", "nodues"),
		AppUser:     getEnv("DB_APP_USER", "nodues_app"),
		AppPassword: getEnv("DB_APP_PASSWORD", "apppass"),
		User:        getEnv("DB_USER", "nodues_report"),
		Password:    getEnv("DB_PASSWORD", "reportpass"),
	}

	var (
		image   string
		port    nat.Port
		env     map[string]string
		dataDir string
		waitFor wait.Strategy
	)
	switch dbType {
	case "postgres":
		image = getEnv("POSTGRES_IMAGE", "postgres:16-alpine")
		port = "5432/tcp"
		env = map[string]string{
			"POSTGRES_PASSWORD": d.AppPassword,
			"POSTGRES_USER":     d.AppUser,
			"POSTGRES_DB":       d.Name,
		}
		dataDir = "/var/lib/postgresql/data"
		waitFor = wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second)
	case "mysql", "mariadb":
		image = getEnv("DB_IMAGE", "mariadb:11")
		port = "3306/tcp"
		env = map[string]string{
			"MYSQL_ROOT_PASSWORD": getEnv("DB_ROOT_PASSWORD", "rootpass"),
			"MYSQL_DATABASE":      d.Name,
			"MYSQL_USER":          d.AppUser,
			"MYSQL_PASSWORD":      d.AppPassword,
		}
		dataDir = "/var/lib/mysql"
		waitFor = wait.ForListeningPort(port).WithStartupTimeout(60 * time.Second)
	default:
		return nil, fmt.Errorf("unsupported test database type %q", dbType)
	}

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{string(port)},
		Env:          env,
		WaitingFor:   waitFor,
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.Tmpfs = map[string]string{dataDir: "rw"}
		},
	}
	if networkName != "" {
		req.Networks = []string{networkName}
		req.NetworkAliases = map[string][]string{networkName: {"db"}}
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", dbType, err)
	}
	d.Container = c

	d.Host, _ = c.Host(ctx)
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		d.Terminate(t)
		return nil, err
	}
	d.Port = mapped.Port()

	if dbType == "postgres" {
		err = performPostgresDBInit(d)
	} else {
		err = performMySqlDBInit(d, env["MYSQL_ROOT_PASSWORD"])
	}
	if err != nil {
		d.Terminate(t)
		return nil, err
	}
	logMessage(t, "%s ready at %s:%s", dbType, d.Host, d.Port)
	return d, nil
}

func waitForPing(db *sql.DB, label string) error {
	var err error
	for i := 0; i < 30; i++ {
		if err = db.Ping(); err == nil {
			return nil
		}
		time.Sleep(1 * time.Second)
	}
	return fmt.Errorf("%s not ready after 30 seconds: %w", label, err)
}

func performMySqlDBInit(d *Database, rootPassword string) error {
	db, err := sql.Open("mysql", fmt.Sprintf("root:%s@tcp(%s:%s)/", rootPassword, d.Host, d.Port))
	if err != nil {
		return fmt.Errorf("connect to MariaDB for setup: %w", err)
	}
	defer db.Close()

	if err := waitForPing(db, "MariaDB"); err != nil {
		return err
	}

	statements := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", d.Name),
		fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'%%' IDENTIFIED BY '%s'", d.User, d.Password),
		fmt.Sprintf("GRANT SELECT ON %s.* TO '%s'@'%%'", d.Name, d.User),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON %s.* TO '%s'@'%%'", d.Name, d.AppUser),
		"FLUSH PRIVILEGES",
	}
	for _, s := range statements {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("%w : when executing > %s", err, s)
		}
	}
	return nil
}

func performPostgresDBInit(d *Database) error {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", d.AppUser, d.AppPassword, d.Host, d.Port, d.Name)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("connect to Postgres for setup: %w", err)
	}
	defer db.Close()

	if err := waitForPing(db, "Postgres"); err != nil {
		return err
	}

	statements := []string{
		fmt.Sprintf("CREATE ROLE %s LOGIN PASSWORD '%s'", d.User, d.Password),
		fmt.Sprintf("GRANT USAGE ON SCHEMA public TO %s", d.User),
		fmt.Sprintf("ALTER DEFAULT PRIVILEGES FOR ROLE %s IN SCHEMA public GRANT SELECT ON TABLES TO %s", d.AppUser, d.User),
	}
	for _, s := range statements {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("%w : when executing > %s", err, s)
		}
	}
	return nil
}

func startService(ctx context.Context, networkName, alias string, req testcontainers.ContainerRequest) (testcontainers.Container, error) {
	if networkName != "" {
		req.Networks = []string{networkName}
		req.NetworkAliases = map[string][]string{networkName: {alias}}
	}
	return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
}

func endpoint(ctx context.Context, c testcontainers.Container, port nat.Port) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), nil
}

// StartRedis starts the certificate queue backend and returns its address.
func StartRedis(ctx context.Context, networkName string) (testcontainers.Container, string, error) {
	c, err := startService(ctx, networkName, "redis", testcontainers.ContainerRequest{
		Image:        getEnv("REDIS_IMAGE", "redis:7-alpine"),
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	})
	if err != nil {
		return nil, "", fmt.Errorf("start redis: %w", err)
	}
	addr, err := endpoint(ctx, c, "6379/tcp")
	return c, addr, err
}

// StartNATS starts the notification broker and returns its URL.
func StartNATS(ctx context.Context, networkName string) (testcontainers.Container, string, error) {
	c, err := startService(ctx, networkName, "nats", testcontainers.ContainerRequest{
		Image:        getEnv("NATS_IMAGE", "nats:2.10-alpine"),
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
	})
	if err != nil {
		return nil, "", fmt.Errorf("start nats: %w", err)
	}
	addr, err := endpoint(ctx, c, "4222/tcp")
	return c, "nats://" + addr, err
}

// StartMinIO starts the certificate object store and returns its endpoint.
func StartMinIO(ctx context.Context, networkName string) (testcontainers.Container, string, error) {
	c, err := startService(ctx, networkName, "minio", testcontainers.ContainerRequest{
		Image:        getEnv("MINIO_IMAGE", "minio/minio:latest"),
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     MinIOUser,
			"MINIO_ROOT_PASSWORD": MinIOPassword,
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	})
	if err != nil {
		return nil, "", fmt.Errorf("start minio: %w", err)
	}
	addr, err := endpoint(ctx, c, "9000/tcp")
	return c, addr, err
}

// CreateAllTestContainers starts every backing service of the server and the
// certificate worker. The authorizer is only started when AUTHZ_IMAGE is set.
func CreateAllTestContainers(t *testing.T) (*TestContainers, error) {
	ctx := context.Background()
	tc := &TestContainers{Env: map[string]string{}}

	nw, err := network.New(ctx)
	if err != nil {
		exitWithError(t, err, "Failed to create network")
	}
	tc.Network = nw
	networkName := nw.Name

	dbType := getEnv("DB_TYPE", "postgres")
	tc.DB, err = StartDatabase(ctx, t, dbType, networkName)
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to start Database")
	}
	tc.Env["DB_TYPE"] = dbType
	tc.Env["DB_HOST"] = tc.DB.Host
	tc.Env["DB_PORT"] = tc.DB.Port
	tc.Env["DB_DATABASE"] = tc.DB.Name
	tc.Env["DB_APP_USER"] = tc.DB.AppUser
	tc.Env["DB_APP_PASSWORD"] = tc.DB.AppPassword
	tc.Env["DB_USER"] = tc.DB.User
	tc.Env["DB_PASSWORD"] = tc.DB.Password

	var addr string
	tc.RedisContainer, addr, err = StartRedis(ctx, networkName)
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to start Redis")
	}
	tc.Env["REDIS_ADDR"] = addr

	tc.NATSContainer, addr, err = StartNATS(ctx, networkName)
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to start NATS")
	}
	tc.Env["NATS_URL"] = addr

	tc.MinIOContainer, addr, err = StartMinIO(ctx, networkName)
	if err != nil {
		tc.Terminate(t)
		exitWithError(t, err, "Failed to start MinIO")
	}
	tc.Env["S3_ENDPOINT"] = addr
	tc.Env["S3_ACCESS_KEY"] = MinIOUser
	tc.Env["S3_SECRET_KEY"] = MinIOPassword

	if image := os.Getenv("AUTHZ_IMAGE"); image != "" {
		authzPort, err := nat.NewPort("tcp", getEnv("AUTHZ_PORT", "8080"))
		if err != nil {
			tc.Terminate(t)
			exitWithError(t, err, "Failed to create Authorizer port")
		}
		logLevel := "info"
		if os.Getenv("DEBUG_CONTAINER") == "true" {
			logLevel = "debug"
		}
		tc.AuthorizerContainer, err = startService(ctx, networkName, "authorizer", testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{string(authzPort)},
			Env: map[string]string{
				"ENV":           "production",
				"CLIENT_ID":     os.Getenv("AUTHZ_CLIENT_ID"),
				"PORT":          authzPort.Port(),
				"DATABASE_TYPE": "sqlite",
				"DATABASE_URL":  "/tmp/authorizer.db",
				"ADMIN_SECRET":  os.Getenv("AUTHZ_ADMIN_SECRET"),
				"ROLES":         "admin,student,department:library,department:accounts,department:hostel",
				"DEFAULT_ROLES": "student",
				"LOG_LEVEL":     logLevel,
			},
			WaitingFor: wait.ForLog("Authorizer running at PORT:").WithStartupTimeout(30 * time.Second),
		})
		if err != nil {
			tc.Terminate(t)
			exitWithError(t, err, "Failed to start Authorizer")
		}
		addr, err := endpoint(ctx, tc.AuthorizerContainer, authzPort)
		if err != nil {
			tc.Terminate(t)
			exitWithError(t, err, "Failed to resolve Authorizer endpoint")
		}
		tc.Env["AUTH_MODE"] = "authorizer"
		tc.Env["AUTHZ_URL"] = "http://" + addr
		tc.Env["AUTHZ_CLIENT_ID"] = os.Getenv("AUTHZ_CLIENT_ID")
	} else {
		tc.Env["AUTH_MODE"] = "header"
	}

	for k, v := range tc.Env {
		logMessage(t, "%s=%s", k, v)
	}
	logMessage(t, "nodues testcontainers started successfully")
	return tc, nil
}

func exitWithError(t *testing.T, err error, msg string) {
	if t != nil {
		t.Fatalf(msg+": %v", err)
	} else {
		fmt.Printf(msg+": %v\n", err)
		os.Exit(1)
	}
}

func logMessage(t *testing.T, format string, args ...any) {
	if t != nil {
		t.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}
