package cache_test

import (
	"github.com/EasterCompany/dex-voice-service/cache"
	"github.com/EasterCompany/dex-voice-service/cleanup"
	"github.com/EasterCompany/dex-voice-service/endpoints"
	"github.com/EasterCompany/dex-voice-service/pipeline"
)

// DB is consumed only through the interfaces its callers declare.
var (
	_ pipeline.AudioStore     = (*cache.DB)(nil)
	_ pipeline.EventPublisher = (*cache.DB)(nil)
	_ endpoints.AudioLoader   = (*cache.DB)(nil)
	_ cleanup.AudioCleaner    = (*cache.DB)(nil)
)
