package service

import "time"

// BuiltinCatalog is the built-in service definitions spec.md §4.9
// refers to ("Service declarations (from manifest or built-in
// catalog)"). A manifest service entry whose name matches a catalog
// key is expanded against the catalog's Definition; entries declared
// entirely within the manifest (dependencies.port, .env) never consult
// it. Grounded on the teacher's internal/recipe static-catalog shape,
// narrowed here to the handful of services Launchpad ships placeholder
// support for.
var BuiltinCatalog = map[string]*Definition{
	"redis": {
		Name:          "redis",
		DisplayName:   "Redis",
		PackageDomain: "redis",
		Executable:    "redis-server",
		Args:          []string{"--port", "{port}", "--dir", "{dataDir}", "--logfile", "{logFile}", "--pidfile", "{pidFile}", "--daemonize", "no"},
		Port:          6379,
		HealthCheck: &HealthCheck{
			Command:  []string{"redis-cli", "-p", "{port}", "ping"},
			Retries:  10,
			Interval: 200 * time.Millisecond,
			Timeout:  time.Second,
		},
		SupportsGracefulShutdown: true,
		AutoRestart:              true,
		StartupTimeout:           10 * time.Second,
		ShutdownTimeout:          5 * time.Second,
	},
	"postgresql": {
		Name:          "postgresql",
		DisplayName:   "PostgreSQL",
		PackageDomain: "postgresql",
		Executable:    "postgres",
		Args:          []string{"-D", "{dataDir}", "-p", "{port}"},
		Port:          5432,
		InitCommand:   []string{"initdb", "-D", "{dataDir}", "-U", "{dbUsername}"},
		HealthCheck: &HealthCheck{
			Command:  []string{"pg_isready", "-p", "{port}"},
			Retries:  20,
			Interval: 300 * time.Millisecond,
			Timeout:  2 * time.Second,
		},
		SupportsGracefulShutdown: true,
		AutoRestart:              true,
		StartupTimeout:           20 * time.Second,
		ShutdownTimeout:          10 * time.Second,
	},
}

// LookupBuiltin returns the catalog Definition for name, if any.
func LookupBuiltin(name string) (*Definition, bool) {
	def, ok := BuiltinCatalog[name]
	return def, ok
}
