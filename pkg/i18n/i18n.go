// Package i18n holds the localized message table for engine error codes and
// the handful of user-facing strings the gateway emits. The GUI shell renders
// these directly, so both English and Chinese are kept in sync.
package i18n

import (
	"fmt"
	"sync"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

var (
	mu          sync.RWMutex
	currentLang = LangEN
)

// SetLanguage switches the active language. Unknown values fall back to English.
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()
	if lang == LangZH {
		currentLang = LangZH
	} else {
		currentLang = LangEN
	}
}

// Current returns the active language.
func Current() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

type pair struct {
	en string
	zh string
}

func (p pair) get() string {
	if Current() == LangZH {
		return p.zh
	}
	return p.en
}

// Engine error codes. The front returns these on login/connect failures;
// anything not in the table is surfaced verbatim as an API error.
var engineCodes = map[int]pair{
	-1:  {"network connection failed", "网络连接失败"},
	-2:  {"invalid user name or password", "用户名或密码错误"},
	-3:  {"user already logged in", "用户已登录"},
	-4:  {"user does not exist", "用户不存在"},
	-5:  {"wrong password", "密码错误"},
	-6:  {"user is locked", "用户被锁定"},
	-7:  {"connection timed out", "连接超时"},
	-8:  {"authentication failed", "认证失败"},
	-9:  {"front is inactive", "前置不活跃"},
	-10: {"duplicate login", "重复登录"},
	-11: {"invalid broker id", "经纪商代码错误"},
	-12: {"invalid investor id", "投资者代码错误"},
	-13: {"invalid auth code", "认证码错误"},
	-14: {"invalid app id", "应用标识错误"},
	-15: {"session timed out", "会话超时"},
}

// EngineCodeMessage returns the localized message for a known engine error
// code. ok is false for codes outside the table.
func EngineCodeMessage(code int) (msg string, ok bool) {
	p, ok := engineCodes[code]
	if !ok {
		return "", false
	}
	return p.get(), true
}

var texts = map[string]pair{
	"config.missing_front":      {"front addresses are not configured", "未配置前置地址"},
	"order.rate_limited":        {"order rate limit exceeded", "下单频率超过限制"},
	"order.invalid_instrument":  {"instrument id is empty", "合约代码为空"},
	"order.invalid_direction":   {"invalid order direction %q", "无效的买卖方向 %q"},
	"order.invalid_offset":      {"invalid offset flag %q", "无效的开平标志 %q"},
	"order.insufficient_close":  {"closeable volume of %s is less than %d", "合约 %s 可平数量不足 %d"},
	"order.invalid_volume":      {"order volume must be positive, got %d", "下单数量必须为正数，当前为 %d"},
	"order.invalid_price":       {"limit price must be positive, got %.4f", "限价必须为正数，当前为 %.4f"},
	"order.not_found":           {"order %s not found", "未找到报单 %s"},
	"order.terminal":            {"order %s is already in terminal state %s", "报单 %s 已处于终态 %s"},
	"order.no_exchange_ids":     {"order %s has no exchange identifiers yet", "报单 %s 尚未获得交易所编号"},
	"settlement.none":           {"no settlement document retrieved for the current trading day", "当前交易日无结算单"},
	"settlement.confirmed":      {"settlement already confirmed", "结算单已确认"},
	"session.not_connected":     {"not connected to a front (state: %s)", "未连接到前置（当前状态：%s）"},
	"session.not_logged_in":     {"not logged in", "用户未登录"},
	"session.connect_timeout":   {"timed out waiting for front connection", "等待前置连接超时"},
	"session.login_timeout":     {"timed out waiting for login response", "等待登录应答超时"},
	"session.request_rejected":  {"engine rejected the request with code %d", "请求被拒绝，返回码 %d"},
	"query.timeout":             {"query %s timed out", "查询 %s 超时"},
	"subscription.max_retries":  {"subscription for %s failed after %d attempts", "合约 %s 订阅失败，已重试 %d 次"},
	"risk.order_volume":     {"order volume %d exceeds limit %d", "单笔下单量 %d 超过限制 %d"},
	"risk.position_limit":   {"position %d would exceed limit %d", "持仓 %d 超过限制 %d"},
	"risk.daily_loss":       {"daily loss %.2f exceeds limit %.2f", "当日亏损 %.2f 超过限制 %.2f"},
	"risk.ratio":            {"risk ratio %.2f exceeds threshold %.2f", "风险度 %.2f 超过阈值 %.2f"},
	"risk.forbidden":        {"instrument %s is forbidden", "合约 %s 禁止交易"},
}

// T returns the localized format string for key, formatted with args.
// Unknown keys return the key itself so missing entries are visible in logs.
func T(key string, args ...any) string {
	p, ok := texts[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return p.get()
	}
	return fmt.Sprintf(p.get(), args...)
}
