package utils

import "strings"

// MaskSecret 返回适合写入日志的脱敏字符串：保留末 4 位，其余替换为 ***。
// 长度不足 8 的值完全隐藏，空值返回 "未设置"。
func MaskSecret(s string) string {
	if s == "" {
		return "未设置"
	}
	if len(s) < 8 {
		return "***"
	}
	return "***" + s[len(s)-4:]
}

// MaskBearer 脱敏 Authorization 头中的令牌部分。
func MaskBearer(header string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return MaskSecret(header)
	}
	return scheme + " " + MaskSecret(strings.TrimSpace(tok))
}
