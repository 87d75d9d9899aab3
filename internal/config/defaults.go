package config

// DefaultStateDir is where session state lives when no directory is
// configured.
const DefaultStateDir = ".steerstate/sessions"

// DefaultConfigYAML contains the default configuration file content
// written by `steerstate init`.
const DefaultConfigYAML = `# steerstate configuration
#
# Values not specified here use sensible defaults.

log:
  # debug, info, warn, error
  level: info
  # auto, text, json
  format: auto

state:
  # Root directory; each session keeps its state file and journal in a
  # subdirectory named by session id.
  dir: .steerstate/sessions
  # json (one file per session, atomic rename) or sqlite
  backend: json
  # Total save attempt budget before a durable error is returned.
  max_attempts: 3
  # First retry delay; doubles on each subsequent attempt.
  base_backoff: 50ms

detector:
  # Number of recent diagnostic events examined for loop patterns.
  window: 20
  # Failures/attempts ratio above which the session is critical.
  failure_threshold: 0.5

serve:
  host: localhost
  port: 8643
  enable_cors: false
  cors_origins: []
`
