package relevance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RouteProblems is the built-in route name for defect language.
const RouteProblems = "problems"

// defaultUtterances describe how expertise reports phrase findings. Tuned for
// Russian construction defect acts.
var defaultUtterances = []string{
	"выявлены следующие дефекты и недостатки отделочных работ",
	"царапины, сколы и разнотон досок ламината",
	"зазоры между досками ламината более допустимых",
	"отклонение поверхности пола от плоскости более 4 мм на 2 м рейку",
	"пустоты под плиткой, смещение и ширина швов не соответствуют нормам",
	"трещины и зазоры в примыкании пластиковых нащельников к откосам",
	"не выполнена регулировка фурнитуры оконного блока",
	"отслоение обоев, следы клея и загрязнения на поверхности",
	"неравномерность окраски стен и потолков, пропуски и потеки",
	"протечки и неисправность сантехнических приборов",
	"зазор между стеной и потолочным плинтусом натяжного потолка",
	"механические повреждения дверного полотна и наличников",
	"монтажный шов не соответствует проекту",
	"нарушение требований СП 71.13330.2017 изоляционные и отделочные покрытия",
}

// DefaultRoutes returns the built-in single-route set.
func DefaultRoutes() []Route {
	utterances := make([]string, len(defaultUtterances))
	copy(utterances, defaultUtterances)
	return []Route{{Name: RouteProblems, Utterances: utterances}}
}

// LoadRoutes reads a route set from a YAML file:
//
//	routes:
//	  - name: problems
//	    utterances:
//	      - "..."
func LoadRoutes(path string) ([]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}

	var doc struct {
		Routes []Route `yaml:"routes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse routes file: %w", err)
	}
	if len(doc.Routes) == 0 {
		return nil, fmt.Errorf("routes file %s defines no routes", path)
	}
	for _, r := range doc.Routes {
		if r.Name == "" {
			return nil, fmt.Errorf("routes file %s: route with empty name", path)
		}
		if len(r.Utterances) == 0 {
			return nil, fmt.Errorf("routes file %s: route %q has no utterances", path, r.Name)
		}
	}
	return doc.Routes, nil
}
