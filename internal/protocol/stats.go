package protocol

// Stat type ids carried in StatData.
const (
	StatMaxHP          uint8 = 0
	StatHP             uint8 = 1
	StatSize           uint8 = 2
	StatMaxMP          uint8 = 3
	StatMP             uint8 = 4
	StatNextLevelExp   uint8 = 5
	StatExp            uint8 = 6
	StatLevel          uint8 = 7
	StatInventory0     uint8 = 8
	StatInventory11    uint8 = 19
	StatAttack         uint8 = 20
	StatDefense        uint8 = 21
	StatSpeed          uint8 = 22
	StatVitality       uint8 = 26
	StatWisdom         uint8 = 27
	StatDexterity      uint8 = 28
	StatCondition      uint8 = 29
	StatNumStars       uint8 = 30
	StatName           uint8 = 31
	StatCredits        uint8 = 35
	StatAccountID      uint8 = 38
	StatFame           uint8 = 39
	StatOwnerAccountID uint8 = 54
	StatCurrFame       uint8 = 57
	StatNameChosen     uint8 = 58
	StatGuildName      uint8 = 62
	StatGuildRank      uint8 = 63
	StatBackpack0      uint8 = 71
	StatBackpack7      uint8 = 78
	StatHasBackpack    uint8 = 79
	StatPetName        uint8 = 82
)

// IsStringStat reports whether a stat is encoded as a string on the wire.
func IsStringStat(statType uint8) bool {
	switch statType {
	case StatName, StatAccountID, StatOwnerAccountID, StatGuildName, StatPetName:
		return true
	}
	return false
}
