package client

import "github.com/nrelay-go/nrelay/internal/protocol"

// PlayerData mirrors the server-confirmed state of the local player.
type PlayerData struct {
	ObjectID    int32                 `json:"object_id"`
	WorldPos    protocol.WorldPosData `json:"world_pos"`
	Name        string                `json:"name"`
	Class       uint16                `json:"class"`
	Level       int32                 `json:"level"`
	Exp         int32                 `json:"exp"`
	CurrentFame int32                 `json:"current_fame"`
	Stars       int32                 `json:"stars"`
	AccountID   string                `json:"account_id"`
	AccountFame int32                 `json:"account_fame"`
	Gold        int32                 `json:"gold"`
	NameChosen  bool                  `json:"name_chosen"`
	GuildName   string                `json:"guild_name"`
	GuildRank   int32                 `json:"guild_rank"`
	MaxHP       int32                 `json:"max_hp"`
	HP          int32                 `json:"hp"`
	MaxMP       int32                 `json:"max_mp"`
	MP          int32                 `json:"mp"`
	Atk         int32                 `json:"atk"`
	Def         int32                 `json:"def"`
	Spd         int32                 `json:"spd"`
	Dex         int32                 `json:"dex"`
	Wis         int32                 `json:"wis"`
	Vit         int32                 `json:"vit"`
	Condition   int32                 `json:"condition"`
	Inventory   [12]int32             `json:"inventory"`
	HasBackpack bool                  `json:"has_backpack"`
	Backpack    [8]int32              `json:"backpack"`

	// Server is the name of the server this client was configured for. It
	// is client-side bookkeeping and survives replacement from server data.
	Server string `json:"server"`
}

// DefaultPlayerData returns player data with every item slot empty.
func DefaultPlayerData() PlayerData {
	pd := PlayerData{}
	for i := range pd.Inventory {
		pd.Inventory[i] = -1
	}
	for i := range pd.Backpack {
		pd.Backpack[i] = -1
	}
	return pd
}

// ProcessStatData builds PlayerData from an object status.
func ProcessStatData(status protocol.ObjectStatusData) PlayerData {
	pd := DefaultPlayerData()
	pd.ObjectID = status.ObjectID
	pd.WorldPos = status.Pos

	for _, s := range status.Stats {
		switch {
		case s.StatType >= protocol.StatInventory0 && s.StatType <= protocol.StatInventory11:
			pd.Inventory[s.StatType-protocol.StatInventory0] = s.Value
			continue
		case s.StatType >= protocol.StatBackpack0 && s.StatType <= protocol.StatBackpack7:
			pd.Backpack[s.StatType-protocol.StatBackpack0] = s.Value
			continue
		}

		switch s.StatType {
		case protocol.StatMaxHP:
			pd.MaxHP = s.Value
		case protocol.StatHP:
			pd.HP = s.Value
		case protocol.StatMaxMP:
			pd.MaxMP = s.Value
		case protocol.StatMP:
			pd.MP = s.Value
		case protocol.StatExp:
			pd.Exp = s.Value
		case protocol.StatLevel:
			pd.Level = s.Value
		case protocol.StatAttack:
			pd.Atk = s.Value
		case protocol.StatDefense:
			pd.Def = s.Value
		case protocol.StatSpeed:
			pd.Spd = s.Value
		case protocol.StatVitality:
			pd.Vit = s.Value
		case protocol.StatWisdom:
			pd.Wis = s.Value
		case protocol.StatDexterity:
			pd.Dex = s.Value
		case protocol.StatCondition:
			pd.Condition = s.Value
		case protocol.StatNumStars:
			pd.Stars = s.Value
		case protocol.StatName:
			pd.Name = s.StringValue
		case protocol.StatCredits:
			pd.Gold = s.Value
		case protocol.StatAccountID:
			pd.AccountID = s.StringValue
		case protocol.StatFame:
			pd.AccountFame = s.Value
		case protocol.StatCurrFame:
			pd.CurrentFame = s.Value
		case protocol.StatNameChosen:
			pd.NameChosen = s.Value != 0
		case protocol.StatGuildName:
			pd.GuildName = s.StringValue
		case protocol.StatGuildRank:
			pd.GuildRank = s.Value
		case protocol.StatHasBackpack:
			pd.HasBackpack = s.Value != 0
		}
	}
	return pd
}

// CharInfo tracks which character the account plays.
type CharInfo struct {
	CharID      int32 `json:"char_id"`
	NextCharID  int32 `json:"next_char_id"`
	MaxNumChars int32 `json:"max_num_chars"`
}

// MapInfo is the metadata of the current map. It is fixed until the next
// MapInfo packet.
type MapInfo struct {
	Width  int32  `json:"width"`
	Height int32  `json:"height"`
	Name   string `json:"name"`
}
