package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestDetectLanguage_English(t *testing.T) {
	entries := []Entry{
		{Text: "Welcome back to the channel, everyone."},
		{Text: "Today we are going to talk about distributed systems."},
		{Text: "Let's start with the basics of consensus."},
	}

	lang := DetectLanguage(entries)
	base, _ := lang.Base()
	assert.Equal(t, "en", base.String())
}

func TestDetectLanguage_MajorityWins(t *testing.T) {
	entries := []Entry{
		{Text: "今天我们来聊一聊分布式系统的基础知识和常见误区"},
		{Text: "首先从共识算法说起，这是很多系统的核心"},
		{Text: "ok"},
	}

	lang := DetectLanguage(entries)
	base, _ := lang.Base()
	assert.Equal(t, "zh", base.String())
}

func TestDetectLanguage_Empty(t *testing.T) {
	assert.Equal(t, language.Und, DetectLanguage(nil))
	assert.Equal(t, language.Und, DetectLanguage([]Entry{{Text: ""}}))
}
