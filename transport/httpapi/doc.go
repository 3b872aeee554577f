// Package httpapi exposes a goVerify engine over HTTP.
//
// Routes:
//
//	POST /v1/authenticate            run one pipeline attempt
//	POST /v1/enroll/credential       {identity, secret}
//	POST /v1/enroll/template         {identity, modality, vector}
//	POST /v1/enroll/hours            {identity, hours}
//	POST /v1/enroll/keylayers        {identity}
//	POST /v1/enroll/derived          {identity, account}
//	POST /v1/enroll/backup           {identity}
//	GET  /v1/report                  operational report
//	GET  /v1/security                configuration report
//	GET  /metrics                    Prometheus text exposition
//	GET  /healthz
//
// Enrollment and report routes require a bearer grant issued to one of
// [Config.AdminIdentities] unless [Config.OpenEnrollment] is set.
//
// Every request passes a per-client token bucket before it reaches the
// engine. That limiter protects the process; the engine's own admission
// limiter protects identities.
package httpapi
