package env

import (
	"log"
	"strconv"
	"strings"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zenv"
)

type EnvStruct struct {
	PORT               int     `zog:"PORT"`
	API_KEY            string  `zog:"AGENT_API_KEY"`
	CORS_ORIGINS       string  `zog:"CORS_ORIGINS"`
	HEARTBEAT_SECONDS  float64 `zog:"HEARTBEAT_INTERVAL_SECONDS"`
	TIMEOUT_SECONDS    int     `zog:"LUCY_TIMEOUT_SECONDS"`
	MIN_INTERVAL_SEC   float64 `zog:"LUCY_MIN_INTERVAL_SEC"`
	ALLOW_PREFIXES     string  `zog:"LUCY_ALLOW"`
	DENY_SUBSTRINGS    string  `zog:"LUCY_DENY"`
	MAX_AS_MB          int     `zog:"LUCY_MAX_AS_MB"`
	MAX_FSIZE_MB       int     `zog:"LUCY_MAX_FSIZE_MB"`
	DB_PATH            string  `zog:"LUCY_DB_PATH"`
	LISTEN_ADDR        string
	BASE_URL           string
}

var env *EnvStruct

var EnvSchema = z.Struct(z.Shape{
	"PORT":              z.Int().Default(57820),
	"API_KEY":           z.String().Optional(),
	"CORS_ORIGINS":      z.String().Optional(),
	"HEARTBEAT_SECONDS": z.Float64().Default(1.0),
	"TIMEOUT_SECONDS":   z.Int().Default(30),
	"MIN_INTERVAL_SEC":  z.Float64().Default(1.0),
	"ALLOW_PREFIXES":    z.String().Optional(),
	"DENY_SUBSTRINGS":   z.String().Optional(),
	"MAX_AS_MB":         z.Int().Default(512),
	"MAX_FSIZE_MB":      z.Int().Default(32),
	"DB_PATH":           z.String().Optional(),
})

func Get() *EnvStruct {
	if env == nil {
		env = &EnvStruct{}
		errs := EnvSchema.Parse(zenv.NewDataProvider(), env)
		if errs != nil {
			log.Fatal("[lucyd] Failed to parse environment variables", errs)
		}

		env.LISTEN_ADDR = "localhost:" + strconv.Itoa(env.PORT)
		env.BASE_URL = "http://" + env.LISTEN_ADDR
	}
	return env
}

// SplitList parses a comma-separated env value, dropping empty entries.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
