package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"retaildc/internal/etlerr"
)

// Credentials is a database credential set. It is loaded once per process
// and never mutated.
type Credentials struct {
	Host     string `yaml:"RDS_HOST"`
	Port     string `yaml:"RDS_PORT"`
	Database string `yaml:"RDS_DATABASE"`
	User     string `yaml:"RDS_USER"`
	Password string `yaml:"RDS_PASSWORD"`
}

// credentialKeys are the variable, YAML key and parameter names of a set.
var credentialKeys = []string{"RDS_HOST", "RDS_PORT", "RDS_DATABASE", "RDS_USER", "RDS_PASSWORD"}

func (c *Credentials) set(key, v string) {
	switch key {
	case "RDS_HOST":
		c.Host = v
	case "RDS_PORT":
		c.Port = v
	case "RDS_DATABASE":
		c.Database = v
	case "RDS_USER":
		c.User = v
	case "RDS_PASSWORD":
		c.Password = v
	}
}

// Validate reports missing fields. Port and Password may be empty.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Host) == "" {
		missing = append(missing, "RDS_HOST")
	}
	if strings.TrimSpace(c.Database) == "" {
		missing = append(missing, "RDS_DATABASE")
	}
	if strings.TrimSpace(c.User) == "" {
		missing = append(missing, "RDS_USER")
	}
	if len(missing) > 0 {
		return fmt.Errorf("credentials: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

var defaultPorts = map[string]string{
	"postgres": "5432",
	"mysql":    "3306",
	"mssql":    "1433",
	"mongo":    "27017",
}

// DSN renders c as a connection string for dialect: "postgres", "mysql",
// "mssql", "mongo" or "sqlite". For sqlite, Database is the file path.
func (c Credentials) DSN(dialect string) (string, error) {
	if dialect == "sqlite" {
		if c.Database == "" {
			return "", errors.New("credentials: sqlite needs RDS_DATABASE")
		}
		return c.Database, nil
	}
	def, ok := defaultPorts[dialect]
	if !ok {
		return "", fmt.Errorf("credentials: unsupported dialect %q", dialect)
	}
	if err := c.Validate(); err != nil {
		return "", err
	}
	port := c.Port
	if port == "" {
		port = def
	}
	addr := net.JoinHostPort(c.Host, port)

	switch dialect {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = addr
		mc.DBName = c.Database
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	case "mssql":
		u := url.URL{Scheme: "sqlserver", User: url.UserPassword(c.User, c.Password), Host: addr}
		u.RawQuery = url.Values{"database": {c.Database}}.Encode()
		return u.String(), nil
	case "mongo":
		u := url.URL{Scheme: "mongodb", User: url.UserPassword(c.User, c.Password), Host: addr, Path: "/" + c.Database}
		return u.String(), nil
	default:
		u := url.URL{Scheme: "postgres", User: url.UserPassword(c.User, c.Password), Host: addr, Path: "/" + c.Database}
		return u.String(), nil
	}
}

// CredentialSource configures where a credential set is read from.
type CredentialSource struct {
	// Kind is "yaml", "env" or "ssm". Empty means no credentials.
	Kind string `json:"kind"`

	// Path is the YAML file for "yaml" and an optional .env file for "env".
	Path string `json:"path"`

	// Prefix is prepended to each key: a variable prefix for "env" (e.g.
	// "SRC_" reads SRC_RDS_HOST) or a parameter path for "ssm" (e.g.
	// "/retaildc/source" reads /retaildc/source/RDS_HOST).
	Prefix string `json:"prefix"`
}

// IsZero reports whether no credential source is configured.
func (s CredentialSource) IsZero() bool { return s.Kind == "" }

// CredentialLoader returns a credential set.
type CredentialLoader interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// SSMAPI is the subset of *ssm.Client used by SSMCredentials.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// NewCredentialLoader builds the loader selected by s. newSSM is called
// only for "ssm" sources.
func NewCredentialLoader(s CredentialSource, newSSM func() (SSMAPI, error)) (CredentialLoader, error) {
	switch s.Kind {
	case "yaml":
		return YAMLCredentials{Path: s.Path}, nil
	case "env":
		return EnvCredentials{Prefix: s.Prefix, File: s.Path, Lookup: os.LookupEnv}, nil
	case "ssm":
		if newSSM == nil {
			return nil, errors.New("credentials: no ssm client available")
		}
		c, err := newSSM()
		if err != nil {
			return nil, err
		}
		return SSMCredentials{Client: c, Prefix: s.Prefix}, nil
	}
	return nil, fmt.Errorf("credentials: unknown source kind %q", s.Kind)
}

// YAMLCredentials reads a file holding the RDS_* keys.
type YAMLCredentials struct {
	Path string
}

func (y YAMLCredentials) Credentials(context.Context) (Credentials, error) {
	b, err := os.ReadFile(y.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, etlerr.NotFound("credentials: read "+y.Path, err)
		}
		return Credentials{}, fmt.Errorf("credentials: read %s: %w", y.Path, err)
	}
	var c Credentials
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Credentials{}, etlerr.Format("credentials: decode "+y.Path, err)
	}
	return c, c.Validate()
}

// EnvCredentials reads <Prefix>RDS_* variables. When File is set it is
// loaded with godotenv first; variables already set in the environment
// win over the file.
type EnvCredentials struct {
	Prefix string
	File   string
	Lookup func(string) (string, bool)
}

func (e EnvCredentials) Credentials(context.Context) (Credentials, error) {
	if e.File != "" {
		if err := godotenv.Load(e.File); err != nil {
			log.Printf("credentials: no %s file loaded (%v); using process environment", e.File, err)
		}
	}
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var c Credentials
	for _, k := range credentialKeys {
		if v, ok := lookup(e.Prefix + k); ok {
			c.set(k, strings.TrimSpace(v))
		}
	}
	return c, c.Validate()
}

// SSMCredentials reads <Prefix>/RDS_* parameters from SSM Parameter Store
// with decryption.
type SSMCredentials struct {
	Client SSMAPI
	Prefix string
}

func (s SSMCredentials) Credentials(ctx context.Context) (Credentials, error) {
	var c Credentials
	prefix := strings.TrimSuffix(s.Prefix, "/")
	for _, k := range credentialKeys {
		name := prefix + "/" + k
		out, err := s.Client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(name),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			var nf *ssmtypes.ParameterNotFound
			if errors.As(err, &nf) {
				if k == "RDS_PORT" || k == "RDS_PASSWORD" {
					continue
				}
				return Credentials{}, etlerr.NotFound("credentials: ssm "+name, err)
			}
			return Credentials{}, etlerr.Connectivity("credentials: ssm "+name, err)
		}
		if out.Parameter != nil {
			c.set(k, aws.ToString(out.Parameter.Value))
		}
	}
	return c, c.Validate()
}

// ResolveDSN returns dsn when set, otherwise the DSN rendered for dialect
// from the credentials loaded through src.
func ResolveDSN(ctx context.Context, dsn, dialect string, src CredentialSource, newSSM func() (SSMAPI, error)) (string, error) {
	if dsn != "" {
		return dsn, nil
	}
	if src.IsZero() {
		return "", fmt.Errorf("config: %s needs a dsn or a credentials source", dialect)
	}
	l, err := NewCredentialLoader(src, newSSM)
	if err != nil {
		return "", err
	}
	c, err := l.Credentials(ctx)
	if err != nil {
		return "", err
	}
	return c.DSN(dialect)
}
