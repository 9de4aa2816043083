// Package defects defines the fixed vocabulary of the analysis: room types,
// localization values, work types, and the defect reference list. Reference
// keys are stable snake_case identifiers; their Russian display names are what
// ends up in the report.
package defects

import "strings"

type Room string

const (
	RoomCorridor Room = "Коридор"
	RoomLiving   Room = "Комната"
	RoomBathroom Room = "Санузел"
)

type Location string

const (
	LocationFloor        Location = "Пол"
	LocationCeiling      Location = "Потолок"
	LocationWall         Location = "Стена"
	LocationInteriorDoor Location = "Межкомнатная дверь"
	LocationEntranceDoor Location = "Входная дверь"
	LocationWindowBlock  Location = "Оконный блок"
)

type WorkType string

const (
	WorkFinishing  WorkType = "Отделочные работы"
	WorkPlumbing   WorkType = "Сантехнические работы"
	WorkElectrical WorkType = "Электромонтажные работы"
	WorkTiling     WorkType = "Плиточные работы"
	WorkPainting   WorkType = "Малярные работы"
	WorkPlastering WorkType = "Штукатурные работы"
	WorkDemolition WorkType = "Демонтажные работы"
)

var allRooms = []Room{RoomCorridor, RoomLiving, RoomBathroom}

var allLocations = []Location{
	LocationFloor,
	LocationCeiling,
	LocationWall,
	LocationInteriorDoor,
	LocationEntranceDoor,
	LocationWindowBlock,
}

var allWorkTypes = []WorkType{
	WorkFinishing,
	WorkPlumbing,
	WorkElectrical,
	WorkTiling,
	WorkPainting,
	WorkPlastering,
	WorkDemolition,
}

func RoomStrings() []string {
	result := make([]string, len(allRooms))
	for i, r := range allRooms {
		result[i] = string(r)
	}
	return result
}

func LocationStrings() []string {
	result := make([]string, len(allLocations))
	for i, l := range allLocations {
		result[i] = string(l)
	}
	return result
}

func WorkTypeStrings() []string {
	result := make([]string, len(allWorkTypes))
	for i, w := range allWorkTypes {
		result[i] = string(w)
	}
	return result
}

// Reference is one entry of the defect reference list.
type Reference struct {
	Key  string
	Name string
}

// Curated order. The prompt renders the list exactly as it stands here.
var reference = []Reference{
	{"ventilation_system_malfunction", "Работоспособность системы"},
	{"ventilation_project_mismatch", "Соответствие проекту"},
	{"ventilation_wall_ceiling_gap", "Зазор по стене/потолку"},
	{"ventilation_surface_defects", "Дефекты поверхности"},
	{"heating_pipes_joint_overlap", "Перекрытие швов"},
	{"heating_pipes_surface_defects", "Дефекты поверхности"},
	{"heating_pipes_sewerage", "Канализация"},
	{"heating_pipes_gaps", "Зазоры"},
	{"heating_pipes_fire_protection", "Противопожарный водопровод и спринклерное пожаротушение"},
	{"heating_pipes_water_supply", "Водопровод"},
	{"heating_pipes_cold_supply", "Холодоснабжение"},
	{"wallpaper_paint_uniformity", "Равномерность окраски"},
	{"wallpaper_surface_chalking", "Меление поверхности"},
	{"wallpaper_surface_defects", "Дефекты поверхности"},
	{"window_mounting_seam_mismatch", "Монтажный шов не соответствует проекту"},
	{"window_trim_cracks_gaps", "Трещины, зазоры в примыкание пластиковых нащельников к откосам"},
	{"window_adjustment_missing", "Не выполнена регулировка"},
	{"window_glazing_beads_missing", "Отсутствие, повреждение штапиков"},
	{"window_trim_incorrect_mounting", "Некорректный монтаж нащельников"},
	{"window_hardware_missing", "Отсутствие, повреждение фурнитуры"},
	{"interior_door_adjustment_missing", "Не выполнена регулировка дверного блока"},
	{"interior_door_surface_defects", "Дефекты поверхности"},
	{"interior_door_hardware_adjustment", "Не выполнена регулировка фурнитуры"},
	{"balcony_tile_steps_chips", "Плитка пол-уступы, сколы"},
	{"balcony_paint_drips_stains", "Пропуски, потеки, окрашивания стен и потолков"},
	{"balcony_tile_grout_issues", "Плитка пол -пропуски, излишки затирки"},
	{"wallpaper_joints", "Стыки"},
	{"wallpaper_peeling", "Отслоения"},
	{"wallpaper_gluing_surface_defects", "Дефекты поверхности"},
	{"wallpaper_glue_stains", "Загрязнения, следы клея на поверхности"},
	{"wallpaper_overlap", "Нахлест"},
	{"entrance_door_reinstall_needed", "Демонтаж, монтаж двери"},
	{"entrance_door_adjustment_missing", "Не выполнена регулировка"},
	{"entrance_door_trim_missing", "Отсутствие примыкание доборов и наличников"},
	{"entrance_door_hardware_damage", "Мех.повреждения фурнитуры и др."},
	{"entrance_door_cleanliness", "Чистота"},
	{"entrance_door_surface_defects", "Дефекты поверхности"},
	{"entrance_door_opening_filling", "Заполнение проемов"},
	{"entrance_door_locking_devices", "Запирающие устройства"},
	{"baseboards_surface_defects", "Дефекты поверхности"},
	{"threshold_steps", "Уступы"},
	{"baseboards_floor_gaps", "Зазоры полы"},
	{"baseboards_connecting_elements", "Соединительные элементы"},
	{"baseboards_joint_overlap", "Перекрытие швов"},
	{"baseboards_insufficient_fasteners", "Недостаточное количество крепежей"},
	{"bath_screen_not_fixed", "Не закреплен экран под ванну"},
	{"ceiling_paint_uniformity", "Равномерность окраски"},
	{"ceiling_surface_defects", "Дефекты поверхности"},
	{"inspection_hatch_door_adjustment", "Регулировка дверцы люка"},
	{"inspection_hatch_vertical_deviation", "Отклонение от вертикали"},
	{"inspection_hatch_surface_defects", "Дефекты поверхности"},
	{"inspection_hatch_wall_gap", "Зазор на стене"},
	{"floor_tile_voids", "Пустоты"},
	{"floor_tile_layout_mismatch", "Раскладка не соответствует проекту"},
	{"floor_tile_grout", "Затирка"},
	{"floor_tile_unevenness", "Неровности по плоскости более 4 мм на 2 м рейку"},
	{"floor_tile_joint_displacement", "Смещение швов"},
	{"floor_tile_cracks_chips", "Трещины и сколы"},
	{"floor_tile_joint_placement", "Расположение швов"},
	{"floor_tile_steps", "Уступы"},
	{"floor_tile_joint_width", "Ширина швов"},
	{"floor_level_deviation", "Отклонение уровня пола более 4 мм на 2 м"},
	{"stretch_ceiling_embedded_parts", "Выпирание закладных деталей"},
	{"stretch_ceiling_contamination", "Загрязнение полотна"},
	{"stretch_ceiling_baseboard_gap", "Зазор между стеной и потолочным плинтусом"},
	{"stretch_ceiling_pipe_gap", "Зазор у труб стояков отопления"},
	{"stretch_ceiling_sagging", "Втягивание полотна потолка"},
	{"plumbing_leaks_malfunction", "Протечки и неисправность"},
	{"plumbing_joint_sealing", "Герметизация швов"},
	{"plumbing_surface_defects", "Дефекты поверхности"},
	{"plumbing_mounting", "Крепление"},
	{"plumbing_mechanical_damage", "Механические повреждения"},
	{"plumbing_decorative_covers", "Декоративные накладки"},
	{"wet_cleaning", "Влажная уборка"},
	{"door_trim_connection_gaps", "Зазор в соединениях"},
	{"door_trim_mounting", "Крепление"},
	{"door_trim_wall_gaps", "Зазор по стенам"},
	{"door_trim_surface_defects", "Дефекты поверхности"},
	{"heating_pipes_paint_defects", "Дефекты окраски труб отопления"},
	{"laminate_chips_scratches", "Сколы, царапины, разнотон досок ламината"},
	{"laminate_board_gaps", "Зазоры между досками ламината"},
	{"laminate_ruler_gap", "Зазор между 2х метровой рейкой более 2мм"},
	{"laminate_steps", "Уступы"},
	{"laminate_floor_level_deviation", "Отклонение уровня пола более 4 мм на 2 м рейку"},
	{"laminate_wall_gap_missing", "Отсутствует или менее 10 мм зазор между ламинатом и вертикальными конструкциями"},
	{"window_slopes_paint_uniformity", "Равномерность окраски"},
	{"window_slopes_surface_defects", "Дефекты поверхности"},
	{"wall_tile_joint_displacement", "Смещение швов"},
	{"wall_tile_glue_residue", "Остатки клея"},
	{"wall_tile_layout_mismatch", "Раскладка не соответствует проекту"},
	{"wall_tile_unevenness", "Неровности по плоскости более 2 мм"},
	{"wall_tile_grout", "Затирка"},
	{"wall_tile_steps", "Уступы более 1 мм"},
	{"wall_tile_voids", "Пустоты"},
	{"wall_tile_hole_shapes", "Формы отверстий"},
	{"wall_tile_cracks_chips", "Трещины и сколы"},
	{"wall_tile_joint_width", "Ширина швов"},
}

var displayNames = make(map[string]string, len(reference))

func init() {
	for _, r := range reference {
		displayNames[r.Key] = r.Name
	}
}

// Keys lists the reference keys in curated order.
func Keys() []string {
	result := make([]string, len(reference))
	for i, r := range reference {
		result[i] = r.Key
	}
	return result
}

// ReferenceList returns a copy of the curated reference entries.
func ReferenceList() []Reference {
	result := make([]Reference, len(reference))
	copy(result, reference)
	return result
}

// DisplayName resolves a reference key to its Russian name.
func DisplayName(key string) (string, bool) {
	name, ok := displayNames[strings.TrimSpace(key)]
	return name, ok
}

// IsKey reports whether the input is a known reference key.
func IsKey(key string) bool {
	_, ok := displayNames[strings.TrimSpace(key)]
	return ok
}

// Canonicalize maps loosely formatted model output ("  Laminate Steps ") to a
// reference key.
func Canonicalize(input string) (string, bool) {
	if input == "" {
		return "", false
	}
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	if _, ok := displayNames[normalized]; ok {
		return normalized, true
	}
	return "", false
}
