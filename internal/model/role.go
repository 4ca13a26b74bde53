package model

// Role はユーザーの役割を表す閉じた列挙型。
// 文字列として受け取った値は境界（プロフィール読み込み、メタデータ読み込み）で必ず検証し、
// 検証後は自由形式の文字列として扱わない。
type Role string

const (
	// RoleJobseeker は求職者。未設定・不明な値のデフォルト。
	RoleJobseeker Role = "jobseeker"
	// RoleEmployer は求人を掲載する雇用者。
	RoleEmployer Role = "employer"
	// RoleAdmin は管理者。
	RoleAdmin Role = "admin"
)

// ParseRole は文字列を厳密にRoleへ変換する。
// 小文字の完全一致のみを受け付け、それ以外はfalseを返す。
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleJobseeker, RoleEmployer, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// NormalizeRole はプロフィールに保存された値をRoleに正規化する。
// 不明な値はすべてRoleJobseekerに強制される。
func NormalizeRole(s string) Role {
	if r, ok := ParseRole(s); ok {
		return r
	}
	return RoleJobseeker
}

// PreferredRole はサインアップ時のメタデータpreferred_roleからRoleを導出する。
// employerまたはadminの完全一致のみを採用し、それ以外はRoleJobseekerとする。
func PreferredRole(s string) Role {
	switch Role(s) {
	case RoleEmployer, RoleAdmin:
		return Role(s)
	default:
		return RoleJobseeker
	}
}

// Valid はRoleが列挙値のいずれかであるかを返す。
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// String はRoleの文字列表現を返す。
func (r Role) String() string {
	return string(r)
}
