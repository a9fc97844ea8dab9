// Package limiter provides multi-tier request throttling for defense
// against abusive USSD/API traffic: per-IP, per-phone, and a global
// backstop, same token-bucket shape the teacher used for per-IP and
// per-peer-ID limiting.
package limiter

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/afritokeni/platform/internal/logger"
	"github.com/afritokeni/platform/pkg/config"
	"golang.org/x/time/rate"
)

// RateLimiter provides multi-tier rate limiting.
type RateLimiter struct {
	config config.RateLimiterConfig
	log    *logger.Logger

	// IP-based limiters
	ipLimiters map[string]*rate.Limiter
	ipMutex    sync.RWMutex

	// Phone-based limiters, keyed on the caller's phone number (USSD
	// sessions and SMS-triggered operations have no source IP worth
	// limiting on, so phone is the natural per-identity key there).
	phoneLimiters map[string]*rate.Limiter
	phoneMutex    sync.RWMutex

	// Global limiter
	globalLimiter *rate.Limiter

	// Cleanup
	cleanupInterval time.Duration
	stopChan        chan struct{}
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(cfg config.RateLimiterConfig, log *logger.Logger) *RateLimiter {
	rl := &RateLimiter{
		config:        cfg,
		log:           log,
		ipLimiters:    make(map[string]*rate.Limiter),
		phoneLimiters: make(map[string]*rate.Limiter),
		globalLimiter: rate.NewLimiter(
			rate.Limit(cfg.GlobalLimit),
			int(float64(cfg.GlobalLimit)*cfg.BurstMultiplier),
		),
		cleanupInterval: 5 * time.Minute,
		stopChan:        make(chan struct{}),
	}

	go rl.cleanupStale()

	return rl
}

// CheckIP checks if a request from an IP is allowed.
func (rl *RateLimiter) CheckIP(ip string) (bool, error) {
	if !rl.config.Enabled {
		return true, nil
	}

	if !rl.globalLimiter.Allow() {
		return false, fmt.Errorf("global rate limit exceeded")
	}

	limiter := rl.getLimiter(&rl.ipMutex, rl.ipLimiters, ip, rl.config.IPLimit)

	if !limiter.Allow() {
		rl.log.WithField("ip", ip).Warn("IP rate limit exceeded")
		return false, fmt.Errorf("IP rate limit exceeded")
	}

	return true, nil
}

// CheckPhone checks if a request from a phone number is allowed, for
// USSD sessions and other operations with no meaningful source IP.
func (rl *RateLimiter) CheckPhone(phone string) (bool, error) {
	if !rl.config.Enabled {
		return true, nil
	}

	if !rl.globalLimiter.Allow() {
		return false, fmt.Errorf("global rate limit exceeded")
	}

	limiter := rl.getLimiter(&rl.phoneMutex, rl.phoneLimiters, phone, rl.config.PhoneLimit)

	if !limiter.Allow() {
		rl.log.WithField("phone", phone).Warn("phone rate limit exceeded")
		return false, fmt.Errorf("phone rate limit exceeded")
	}

	return true, nil
}

// CheckRequest checks both IP and global limits for an HTTP request.
func (rl *RateLimiter) CheckRequest(remoteAddr string) (bool, error) {
	if !rl.config.Enabled {
		return true, nil
	}

	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// If no port, assume it's just the IP
		ip = remoteAddr
	}

	return rl.CheckIP(ip)
}

// getLimiter gets or creates a token-bucket limiter keyed on id, sized
// from the given per-identity rate.
func (rl *RateLimiter) getLimiter(mu *sync.RWMutex, limiters map[string]*rate.Limiter, id string, perIdentityLimit int) *rate.Limiter {
	mu.RLock()
	limiter, exists := limiters[id]
	mu.RUnlock()

	if exists {
		return limiter
	}

	mu.Lock()
	defer mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := limiters[id]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(
		rate.Limit(perIdentityLimit),
		int(float64(perIdentityLimit)*rl.config.BurstMultiplier),
	)
	limiters[id] = limiter

	return limiter
}

// cleanupStale removes inactive limiters periodically.
func (rl *RateLimiter) cleanupStale() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopChan:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.ipMutex.Lock()
	for ip, limiter := range rl.ipLimiters {
		// Remove if limiter hasn't been used (has full tokens)
		if limiter.Tokens() == float64(limiter.Burst()) {
			delete(rl.ipLimiters, ip)
		}
	}
	ipCount := len(rl.ipLimiters)
	rl.ipMutex.Unlock()

	rl.phoneMutex.Lock()
	for phone, limiter := range rl.phoneLimiters {
		if limiter.Tokens() == float64(limiter.Burst()) {
			delete(rl.phoneLimiters, phone)
		}
	}
	phoneCount := len(rl.phoneLimiters)
	rl.phoneMutex.Unlock()

	rl.log.WithField("ip_limiters", ipCount).
		WithField("phone_limiters", phoneCount).
		Debug("rate limiter cleanup completed")
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopChan)
}

// Stats returns current rate limiter statistics.
func (rl *RateLimiter) Stats() map[string]interface{} {
	rl.ipMutex.RLock()
	ipCount := len(rl.ipLimiters)
	rl.ipMutex.RUnlock()

	rl.phoneMutex.RLock()
	phoneCount := len(rl.phoneLimiters)
	rl.phoneMutex.RUnlock()

	return map[string]interface{}{
		"enabled":       rl.config.Enabled,
		"ip_limiters":   ipCount,
		"phone_limiters": phoneCount,
		"global_limit":  rl.config.GlobalLimit,
		"ip_limit":      rl.config.IPLimit,
		"phone_limit":   rl.config.PhoneLimit,
	}
}
