package crypto

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	encryptOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datacore_encrypt_operations_total",
			Help: "Total number of field encryption operations.",
		},
		[]string{"key_id"},
	)

	encryptFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datacore_encrypt_failures_total",
			Help: "Total number of failed field encryption operations.",
		},
		[]string{"key_id"},
	)

	decryptOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datacore_decrypt_operations_total",
			Help: "Total number of field decryption operations.",
		},
		[]string{"key_id"},
	)

	decryptFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datacore_decrypt_failures_total",
			Help: "Total number of failed field decryption operations, including tamper detections.",
		},
		[]string{"key_id"},
	)
)
