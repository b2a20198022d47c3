package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
	"unicode"

	"github.com/bitonicnl/fireworks/internal/core/ports"
	envfrontend "github.com/bitonicnl/fireworks/internal/infrastructure/frontend/env"
	filefrontend "github.com/bitonicnl/fireworks/internal/infrastructure/frontend/file"
	termfrontend "github.com/bitonicnl/fireworks/internal/infrastructure/frontend/terminal"
	"github.com/bitonicnl/fireworks/internal/infrastructure/lightningd"
	"github.com/bitonicnl/fireworks/internal/infrastructure/lnd"
	"github.com/spf13/viper"
)

type BackendType string

const (
	BackendLightningd BackendType = "lightningd"
	BackendLND        BackendType = "lnd"
)

type FrontendType string

const (
	FrontendTerminal FrontendType = "terminal"
	FrontendEnv      FrontendType = "env"
	FrontendFile     FrontendType = "file"
)

type Config struct {
	Datadir      string
	Backend      BackendType
	PollInterval time.Duration
	LogLevel     uint32
	HTTPPort     uint32

	LightningdDir string

	LNDRPCHost      string
	LNDCertFile     string
	LNDMacaroonFile string
	LNDSocksProxy   string

	FrontendType         FrontendType
	FrontendPassword     string
	FrontendPasswordFile string

	backend  ports.Backend
	frontend ports.Frontend
}

var (
	Backend      = "modules.backend"
	PollInterval = "modules.pollinterval"
	LogLevel     = "log.level"
	HTTPPort     = "http.port"

	LightningdDir = "lightningd.dir"

	LNDRPCHost      = "lnd.rpchost"
	LNDCertFile     = "lnd.certfile"
	LNDMacaroonFile = "lnd.macaroonfile"
	LNDSocksProxy   = "lnd.socksproxy"

	FrontendTypeKey      = "frontend.type"
	FrontendPassword     = "frontend.password"
	FrontendPasswordFile = "frontend.passwordfile"

	defaultDatadir         = appDatadir("fireworks", false)
	defaultBackend         = string(BackendLightningd)
	defaultPollInterval    = 5 * time.Second
	defaultLogLevel        = 4
	defaultHTTPPort        = 7001
	defaultLightningdDir   = "~/.lightning"
	defaultLNDRPCHost      = "localhost:10009"
	defaultLNDCertFile     = "~/.lnd/tls.cert"
	defaultLNDMacaroonFile = "~/.lnd/data/chain/bitcoin/mainnet/admin.macaroon"
	defaultFrontendType    = string(FrontendTerminal)

	overrideRegexp = regexp.MustCompile(`^([A-Za-z0-9_]+)/([A-Za-z0-9_]+)=(.*)$`)
)

// DefaultConfigFile is the INI file read by LoadConfig when no other path is
// given.
func DefaultConfigFile() string {
	return filepath.Join(defaultDatadir, "config")
}

// SplitOverrides separates section/name=value tokens from the other command
// line arguments.
func SplitOverrides(args []string) (overrides, rest []string) {
	for _, arg := range args {
		if overrideRegexp.MatchString(arg) {
			overrides = append(overrides, arg)
			continue
		}
		rest = append(rest, arg)
	}
	return overrides, rest
}

// LoadConfig reads the configuration from, in increasing priority, the
// defaults, the INI file at configFile, FIREWORKS_SECTION_NAME environment
// variables and section/name=value overrides. A missing config file is not
// an error.
func LoadConfig(configFile string, overrides []string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FIREWORKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(Backend, defaultBackend)
	v.SetDefault(PollInterval, defaultPollInterval)
	v.SetDefault(LogLevel, defaultLogLevel)
	v.SetDefault(HTTPPort, defaultHTTPPort)
	v.SetDefault(LightningdDir, defaultLightningdDir)
	v.SetDefault(LNDRPCHost, defaultLNDRPCHost)
	v.SetDefault(LNDCertFile, defaultLNDCertFile)
	v.SetDefault(LNDMacaroonFile, defaultLNDMacaroonFile)
	v.SetDefault(FrontendTypeKey, defaultFrontendType)
	// bound so that AutomaticEnv sees them without a default
	for _, key := range []string{LNDSocksProxy, FrontendPassword, FrontendPasswordFile} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if configFile == "" {
		configFile = DefaultConfigFile()
	}
	if err := readConfigFile(v, cleanAndExpandPath(configFile)); err != nil {
		return nil, err
	}

	for _, override := range overrides {
		match := overrideRegexp.FindStringSubmatch(override)
		if match == nil {
			return nil, fmt.Errorf("invalid override '%s': expected section/name=value", override)
		}
		v.Set(strings.ToLower(match[1]+"."+match[2]), match[3])
	}

	config := &Config{
		Datadir:              filepath.Dir(cleanAndExpandPath(configFile)),
		Backend:              BackendType(strings.ToLower(v.GetString(Backend))),
		PollInterval:         v.GetDuration(PollInterval),
		LogLevel:             v.GetUint32(LogLevel),
		HTTPPort:             v.GetUint32(HTTPPort),
		LightningdDir:        cleanAndExpandPath(v.GetString(LightningdDir)),
		LNDRPCHost:           v.GetString(LNDRPCHost),
		LNDCertFile:          cleanAndExpandPath(v.GetString(LNDCertFile)),
		LNDMacaroonFile:      cleanAndExpandPath(v.GetString(LNDMacaroonFile)),
		LNDSocksProxy:        v.GetString(LNDSocksProxy),
		FrontendType:         FrontendType(strings.ToLower(v.GetString(FrontendTypeKey))),
		FrontendPassword:     v.GetString(FrontendPassword),
		FrontendPasswordFile: cleanAndExpandPath(v.GetString(FrontendPasswordFile)),
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("invalid poll interval %s", v.GetString(PollInterval))
	}

	if err := config.initBackendService(); err != nil {
		return nil, err
	}
	if err := config.initFrontendService(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) BackendService() ports.Backend {
	return c.backend
}

func (c *Config) FrontendService() ports.Frontend {
	return c.frontend
}

func (c *Config) initBackendService() error {
	var svc ports.Backend
	switch c.Backend {
	case BackendLightningd:
		svc = lightningd.NewService(c.LightningdDir)
	case BackendLND:
		svc = lnd.NewService(lnd.Config{
			RPCHost:      c.LNDRPCHost,
			CertFile:     c.LNDCertFile,
			MacaroonFile: c.LNDMacaroonFile,
			SocksProxy:   c.LNDSocksProxy,
		})
	default:
		return fmt.Errorf("unknown backend type '%s'", c.Backend)
	}
	c.backend = svc
	return nil
}

func (c *Config) initFrontendService() error {
	var svc ports.Frontend
	var err error
	switch c.FrontendType {
	case FrontendTerminal:
		svc = termfrontend.NewService()
	case FrontendFile:
		svc, err = filefrontend.NewService(c.FrontendPasswordFile)
	case FrontendEnv:
		svc, err = envfrontend.NewService(c.FrontendPassword)
	default:
		err = fmt.Errorf("unknown frontend type '%s'", c.FrontendType)
	}
	if err != nil {
		return err
	}
	c.frontend = svc
	return nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// appDataDir returns an operating system specific directory to be used for
// storing application data for an application.  See AppDataDir for more
// details.  This unexported version takes an operating system argument
// primarily to enable the testing package to properly test the function by
// forcing an operating system that is not the currently one.
func appDatadir(appName string, roaming bool) string {
	if appName == "" || appName == "." {
		return "."
	}

	// The caller really shouldn't prepend the appName with a period, but
	// if they do, handle it gracefully by trimming it.
	appName = strings.TrimPrefix(appName, ".")
	appNameUpper := string(unicode.ToUpper(rune(appName[0]))) + appName[1:]
	appNameLower := string(unicode.ToLower(rune(appName[0]))) + appName[1:]

	// Get the OS specific home directory via the Go standard lib.
	var homeDir string
	usr, err := user.Current()
	if err == nil {
		homeDir = usr.HomeDir
	}

	// Fall back to standard HOME environment variable that works
	// for most POSIX OSes if the directory from the Go standard
	// lib failed.
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}

	goos := runtime.GOOS
	switch goos {
	// Attempt to use the LOCALAPPDATA or APPDATA environment variable on
	// Windows.
	case "windows":
		// Windows XP and before didn't have a LOCALAPPDATA, so fallback
		// to regular APPDATA when LOCALAPPDATA is not set.
		appData := os.Getenv("LOCALAPPDATA")
		if roaming || appData == "" {
			appData = os.Getenv("APPDATA")
		}

		if appData != "" {
			return filepath.Join(appData, appNameUpper)
		}

	case "darwin":
		if homeDir != "" {
			return filepath.Join(homeDir, "Library",
				"Application Support", appNameUpper)
		}

	case "plan9":
		if homeDir != "" {
			return filepath.Join(homeDir, appNameLower)
		}

	default:
		if homeDir != "" {
			return filepath.Join(homeDir, "."+appNameLower)
		}
	}

	// Fall back to the current directory if all else fails.
	return "."
}

func cleanAndExpandPath(path string) string {
	if path == "" {
		return path
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
